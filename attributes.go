package access

// AttributeManager holds attribute-type definitions, validates values against
// their declared types and evaluates compiled conditions. Pure, no I/O.
type AttributeManager struct {
	byID  map[string]AttributeDefinition
	byKey AttributeMap
}

// NewAttributeManager indexes the configured attribute definitions by ID and
// by their configured key name.
func NewAttributeManager(attrs AttributeMap) *AttributeManager {
	m := &AttributeManager{
		byID:  make(map[string]AttributeDefinition, len(attrs)),
		byKey: make(AttributeMap, len(attrs)),
	}
	for key, def := range attrs {
		m.byID[def.ID] = def
		m.byKey[key] = def
	}
	return m
}

// GetAttribute returns the attribute definition with the given ID.
func (m *AttributeManager) GetAttribute(id string) (AttributeDefinition, bool) {
	d, ok := m.byID[id]
	return d, ok
}

// DefinitionForKey returns the definition registered under a configured key
// name, the form mutation calls address attributes by.
func (m *AttributeManager) DefinitionForKey(key string) (AttributeDefinition, bool) {
	d, ok := m.byKey[key]
	return d, ok
}

// ValidateAttributeValue reports whether value's runtime type matches the
// declared type of the attribute with the given ID. Unknown attribute IDs
// and unrecognized declared types validate as false, never as an error.
func (m *AttributeManager) ValidateAttributeValue(id string, value any) bool {
	def, ok := m.byID[id]
	if !ok {
		return false
	}
	return valueMatchesType(def.Type, value)
}

func valueMatchesType(t AttributeType, value any) bool {
	switch t {
	case AttributeString:
		_, ok := value.(string)
		return ok
	case AttributeNumber:
		_, ok := toFloat(value)
		return ok
	case AttributeBoolean:
		_, ok := value.(bool)
		return ok
	case AttributeObject:
		m, ok := value.(map[string]any)
		return ok && m != nil
	case AttributeArray:
		_, ok := asList(value)
		return ok
	default:
		return false
	}
}

// EvaluateCondition reports whether every clause of the condition holds
// against the subject's attribute values and the call-supplied context.
func (m *AttributeManager) EvaluateCondition(cond Condition, attrs AttributeValues, context map[string]any) bool {
	return cond.Evaluate(attrs, context)
}
