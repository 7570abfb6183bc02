package access

import "testing"

func testAttributes() AttributeMap {
	return AttributeMap{
		"clearance":  {ID: "attr_clearance", Type: AttributeNumber},
		"department": {ID: "attr_department", Type: AttributeString},
		"active":     {ID: "attr_active", Type: AttributeBoolean},
		"location":   {ID: "attr_location", Type: AttributeObject},
		"tags":       {ID: "attr_tags", Type: AttributeArray},
	}
}

func TestValidateAttributeValue(t *testing.T) {
	m := NewAttributeManager(testAttributes())

	tests := []struct {
		id    string
		value any
		want  bool
	}{
		{"attr_clearance", 3, true},
		{"attr_clearance", 3.5, true},
		{"attr_clearance", "three", false},
		{"attr_department", "finance", true},
		{"attr_department", 7, false},
		{"attr_active", true, true},
		{"attr_active", "true", false},
		{"attr_location", map[string]any{"city": "oslo"}, true},
		{"attr_location", "oslo", false},
		{"attr_tags", []any{"a"}, true},
		{"attr_tags", []string{"a"}, true},
		{"attr_tags", "a", false},
		{"attr_ghost", "anything", false},
	}
	for _, tc := range tests {
		if got := m.ValidateAttributeValue(tc.id, tc.value); got != tc.want {
			t.Fatalf("ValidateAttributeValue(%s, %v) = %v, want %v", tc.id, tc.value, got, tc.want)
		}
	}
}

func TestAttributeLookups(t *testing.T) {
	m := NewAttributeManager(testAttributes())

	if _, ok := m.GetAttribute("attr_clearance"); !ok {
		t.Fatalf("expected lookup by id to succeed")
	}
	if _, ok := m.GetAttribute("clearance"); ok {
		t.Fatalf("GetAttribute must use the id, not the key")
	}
	def, ok := m.DefinitionForKey("clearance")
	if !ok || def.ID != "attr_clearance" {
		t.Fatalf("DefinitionForKey(clearance) = %+v (%v)", def, ok)
	}
}
