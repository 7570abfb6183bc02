package access

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Binary wire format: little-endian, header of magic(2) + format version(2) +
// config version(2), then tagged length-prefixed sections. Unknown tags are
// skipped so older readers can load newer files.
const (
	binaryMagic   = 0x4143 // "AC"
	binaryVersion = 1

	sectionRoles      = 0x01
	sectionAttributes = 0x02
	sectionRules      = 0x03
	sectionEngine     = 0x04
)

func encodeBinaryConfig(cfg *Config) ([]byte, error) {
	buf := &bytes.Buffer{}

	binary.Write(buf, binary.LittleEndian, uint16(binaryMagic))
	binary.Write(buf, binary.LittleEndian, uint16(binaryVersion))
	binary.Write(buf, binary.LittleEndian, cfg.Version)

	writeSection(buf, sectionRoles, func(b *bytes.Buffer) { encodeRoles(b, cfg.Roles) })
	writeSection(buf, sectionAttributes, func(b *bytes.Buffer) { encodeAttributes(b, cfg.Attributes) })
	writeSection(buf, sectionRules, func(b *bytes.Buffer) { encodeRules(b, cfg.Rules) })
	writeSection(buf, sectionEngine, func(b *bytes.Buffer) { encodeEngineSettings(b, cfg) })

	return buf.Bytes(), nil
}

func decodeBinaryConfig(data []byte) (*Config, error) {
	r := bytes.NewReader(data)
	cfg := &Config{}

	var magic, ver, cfgVer uint16
	binary.Read(r, binary.LittleEndian, &magic)
	binary.Read(r, binary.LittleEndian, &ver)
	binary.Read(r, binary.LittleEndian, &cfgVer)

	if magic != binaryMagic {
		return nil, fmt.Errorf("invalid magic: %x", magic)
	}
	if ver != binaryVersion {
		return nil, fmt.Errorf("unsupported binary version: %d", ver)
	}
	cfg.Version = cfgVer

	for {
		var tag uint8
		if err := binary.Read(r, binary.LittleEndian, &tag); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		var size uint32
		binary.Read(r, binary.LittleEndian, &size)
		section := make([]byte, size)
		if _, err := io.ReadFull(r, section); err != nil {
			return nil, fmt.Errorf("truncated section %#x: %w", tag, err)
		}

		switch tag {
		case sectionRoles:
			cfg.Roles = decodeRoles(section)
		case sectionAttributes:
			cfg.Attributes = decodeAttributes(section)
		case sectionRules:
			rules, err := decodeRules(section)
			if err != nil {
				return nil, err
			}
			cfg.Rules = rules
		case sectionEngine:
			decodeEngineSettings(section, cfg)
		}
	}

	return cfg, nil
}

func writeSection(buf *bytes.Buffer, tag uint8, fn func(*bytes.Buffer)) {
	tmp := &bytes.Buffer{}
	fn(tmp)
	binary.Write(buf, binary.LittleEndian, tag)
	binary.Write(buf, binary.LittleEndian, uint32(tmp.Len()))
	buf.Write(tmp.Bytes())
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	var l uint16
	binary.Read(r, binary.LittleEndian, &l)
	b := make([]byte, l)
	r.Read(b)
	return string(b)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeRoles(buf *bytes.Buffer, roles RoleMap) {
	binary.Write(buf, binary.LittleEndian, uint16(len(roles)))
	for _, key := range sortedKeys(roles) {
		role := roles[key]
		writeString(buf, key)
		writeString(buf, role.ID)
		writeString(buf, role.Description)
		binary.Write(buf, binary.LittleEndian, uint16(len(role.Permissions)))
		for _, perm := range role.Permissions {
			writeString(buf, perm)
		}
	}
}

func decodeRoles(data []byte) RoleMap {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	roles := make(RoleMap, count)
	for i := uint16(0); i < count; i++ {
		key := readString(r)
		role := Role{
			ID:          readString(r),
			Description: readString(r),
		}
		var permCount uint16
		binary.Read(r, binary.LittleEndian, &permCount)
		role.Permissions = make([]string, permCount)
		for j := range role.Permissions {
			role.Permissions[j] = readString(r)
		}
		roles[key] = role
	}
	return roles
}

func encodeAttributes(buf *bytes.Buffer, attrs AttributeMap) {
	binary.Write(buf, binary.LittleEndian, uint16(len(attrs)))
	for _, key := range sortedKeys(attrs) {
		attr := attrs[key]
		writeString(buf, key)
		writeString(buf, attr.ID)
		writeString(buf, string(attr.Type))
		writeString(buf, attr.Description)
	}
}

func decodeAttributes(data []byte) AttributeMap {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	attrs := make(AttributeMap, count)
	for i := uint16(0); i < count; i++ {
		key := readString(r)
		attrs[key] = AttributeDefinition{
			ID:          readString(r),
			Type:        AttributeType(readString(r)),
			Description: readString(r),
		}
	}
	return attrs
}

func encodeRules(buf *bytes.Buffer, rules []RuleConfig) {
	binary.Write(buf, binary.LittleEndian, uint16(len(rules)))
	for _, rule := range rules {
		writeString(buf, rule.ID)
		writeString(buf, rule.Name)
		writeString(buf, rule.Description)
		writeString(buf, rule.Resource)
		writeString(buf, rule.Action)
		buf.WriteByte(effectByte(rule.Effect))
		condJSON, _ := json.Marshal(rule.Condition)
		writeString(buf, string(condJSON))
	}
}

func decodeRules(data []byte) ([]RuleConfig, error) {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	rules := make([]RuleConfig, count)
	for i := range rules {
		rules[i].ID = readString(r)
		rules[i].Name = readString(r)
		rules[i].Description = readString(r)
		rules[i].Resource = readString(r)
		rules[i].Action = readString(r)
		eff, _ := r.ReadByte()
		rules[i].Effect = effectFromByte(eff)
		condStr := readString(r)
		if condStr != "" && condStr != "null" {
			var cond map[string]any
			if err := json.Unmarshal([]byte(condStr), &cond); err != nil {
				return nil, fmt.Errorf("rule %q: decode condition: %w", rules[i].ID, err)
			}
			rules[i].Condition = cond
		}
	}
	return rules, nil
}

func encodeEngineSettings(buf *bytes.Buffer, cfg *Config) {
	buf.WriteByte(effectByte(cfg.DefaultEffect))
	writeString(buf, string(cfg.Evaluation))
	buf.WriteByte(map[bool]byte{true: 1, false: 0}[cfg.Cache.Enabled])
	binary.Write(buf, binary.LittleEndian, cfg.Cache.TTL)
	writeString(buf, cfg.Cache.Backend)
}

func decodeEngineSettings(data []byte, cfg *Config) {
	r := bytes.NewReader(data)
	eff, _ := r.ReadByte()
	cfg.DefaultEffect = effectFromByte(eff)
	cfg.Evaluation = Strategy(readString(r))
	enb, _ := r.ReadByte()
	cfg.Cache.Enabled = enb == 1
	binary.Read(r, binary.LittleEndian, &cfg.Cache.TTL)
	cfg.Cache.Backend = readString(r)
}

func effectByte(e Effect) byte {
	if e == EffectDeny {
		return 2
	}
	return 1
}

func effectFromByte(b byte) Effect {
	if b == 2 {
		return EffectDeny
	}
	return EffectAllow
}
