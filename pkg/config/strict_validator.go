package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ValidationSeverity distinguishes hard errors from advisory warnings.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// FieldError describes one problem with one configuration field.
type FieldError struct {
	// Field is the dotted path to the offending key ("agents.my-agent.llm").
	Field string

	// Message explains what is wrong.
	Message string

	// Suggestions lists likely intended field names, best match first.
	Suggestions []string

	// Severity marks the entry as an error or a warning.
	Severity ValidationSeverity

	// Context carries extra guidance shown alongside the message.
	Context string
}

// StrictValidationResult aggregates everything the structural pass found.
type StrictValidationResult struct {
	UnknownFields []FieldError
	TypeErrors    []FieldError
	Warnings      []FieldError
}

// Valid reports whether the configuration passed; warnings alone do not
// fail it.
func (r *StrictValidationResult) Valid() bool {
	return len(r.UnknownFields) == 0 && len(r.TypeErrors) == 0
}

// HasIssues reports whether anything at all was flagged, warnings included.
func (r *StrictValidationResult) HasIssues() bool {
	return len(r.UnknownFields) > 0 || len(r.TypeErrors) > 0 || len(r.Warnings) > 0
}

// FormatErrors renders the result as the multi-section report printed to
// users at load time. Returns "" when there is nothing to say.
func (r *StrictValidationResult) FormatErrors() string {
	if !r.HasIssues() {
		return ""
	}

	var sb strings.Builder

	hasErrors := !r.Valid()
	if hasErrors {
		sb.WriteString("ERROR: Configuration validation errors:\n\n")
	}

	if len(r.UnknownFields) > 0 {
		sb.WriteString("UNKNOWN: Unknown/Typo Fields (not recognized):\n")
		for _, field := range r.UnknownFields {
			sb.WriteString(fmt.Sprintf("   • %s: %s\n", field.Field, field.Message))
			if len(field.Suggestions) > 0 {
				sb.WriteString(fmt.Sprintf("     TIP: Did you mean: %s?\n", strings.Join(field.Suggestions, ", ")))
			}
			if field.Context != "" {
				sb.WriteString(fmt.Sprintf("     INFO: %s\n", field.Context))
			}
		}
		sb.WriteString("\n")
		sb.WriteString("   Common causes:\n")
		sb.WriteString("   - Typos in field names\n")
		sb.WriteString("   - Incorrect nesting level\n")
		sb.WriteString("   - Using removed/deprecated fields\n")
		sb.WriteString("   - Copy-paste errors from examples\n\n")
	}

	writeSection := func(heading string, entries []FieldError) {
		if len(entries) == 0 {
			return
		}
		sb.WriteString(heading)
		for _, e := range entries {
			sb.WriteString(fmt.Sprintf("   • %s: %s\n", e.Field, e.Message))
			if e.Context != "" {
				sb.WriteString(fmt.Sprintf("     INFO: %s\n", e.Context))
			}
		}
		sb.WriteString("\n")
	}
	writeSection("TYPE_ERROR: Type Errors:\n", r.TypeErrors)
	writeSection("WARN: Warnings (non-fatal):\n", r.Warnings)

	if hasErrors {
		sb.WriteString("TIP: Hints:\n")
		sb.WriteString("   • Check field names against: docs/reference/configuration.md\n")
		sb.WriteString("   • Verify correct nesting (e.g., 'agents.my-agent.llm' not 'agents.llm')\n")
		sb.WriteString("   • Use 'loom validate <file> --print-config' to see expanded config\n")
		sb.WriteString("   • Compare with working examples in configs/ directory\n")
	}

	return sb.String()
}

// ValidateConfigStructure decodes the raw YAML map against the Config
// schema with unused-key detection enabled, catching typos, unknown
// fields, and wrong nesting before any semantic validation runs.
func ValidateConfigStructure(rawMap map[string]interface{}) (*StrictValidationResult, error) {
	result := &StrictValidationResult{
		UnknownFields: []FieldError{},
		TypeErrors:    []FieldError{},
		Warnings:      []FieldError{},
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		TagName:          "yaml",
		WeaklyTypedInput: false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(rawMap); err != nil {
		classifyDecodeError(err, result)
	}

	return result, nil
}

// classifyDecodeError sorts a mapstructure error into the unknown-field
// or type-error bucket. mapstructure only exposes its findings as
// formatted text, so classification is by message shape.
func classifyDecodeError(err error, result *StrictValidationResult) {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "has invalid keys:"):
		result.UnknownFields = append(result.UnknownFields, parseUnknownKeys(errStr)...)

	case strings.Contains(errStr, "'") &&
		(strings.Contains(errStr, "expected") ||
			strings.Contains(errStr, "cannot unmarshal") ||
			strings.Contains(errStr, "cannot decode")):
		result.TypeErrors = append(result.TypeErrors, parseTypeError(errStr))

	case strings.Contains(errStr, "unused") || strings.Contains(errStr, "unknown"):
		result.UnknownFields = append(result.UnknownFields, FieldError{
			Field:    "unknown",
			Message:  errStr,
			Severity: SeverityError,
		})

	default:
		result.TypeErrors = append(result.TypeErrors, FieldError{
			Field:    "unknown",
			Message:  errStr,
			Severity: SeverityError,
		})
	}
}

// parseUnknownKeys pulls the offending key list out of a mapstructure
// "has invalid keys" message and turns each key into a FieldError with
// typo suggestions. Message shapes handled:
//
//	"* 'search' has invalid keys: key1, key2"
//	"* 'agents[enterprise_assistant].search' has invalid keys: key1"
func parseUnknownKeys(errMsg string) []FieldError {
	idx := strings.Index(errMsg, "has invalid keys:")
	if idx == -1 {
		return []FieldError{{Field: "unknown", Message: errMsg, Severity: SeverityError}}
	}

	parent := parentPathBefore(errMsg[:idx])
	keysStr := strings.TrimSpace(errMsg[idx+len("has invalid keys:"):])
	validFields := yamlFieldPaths(reflect.TypeOf(Config{}))

	var fieldErrors []FieldError
	for _, key := range strings.Split(keysStr, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		fullPath := key
		if parent != "" {
			fullPath = parent + "." + key
		}

		// mapstructure sometimes reports keys it in fact decoded when a
		// sibling failed; drop anything the schema actually has.
		if schemaHasField(fullPath, parent, key, validFields) {
			continue
		}

		suggestions := findSimilarFields(fullPath, validFields, 2)
		if len(suggestions) == 0 {
			suggestions = findSimilarFields(key, validFields, 2)
		}

		fieldErrors = append(fieldErrors, FieldError{
			Field:       fullPath,
			Message:     "field is not recognized in configuration structure",
			Suggestions: suggestions,
			Severity:    SeverityError,
			Context:     "This field does not exist in the configuration schema",
		})
	}

	if len(fieldErrors) == 0 {
		fieldErrors = []FieldError{{Field: "unknown", Message: errMsg, Severity: SeverityError}}
	}
	return fieldErrors
}

// parentPathBefore extracts the quoted parent path preceding
// "has invalid keys:" and normalizes it to its last path component,
// with map-key brackets stripped.
func parentPathBefore(prefix string) string {
	last := strings.LastIndex(prefix, "'")
	if last <= 0 {
		return ""
	}
	open := strings.LastIndex(prefix[:last], "'")
	if open == -1 {
		return ""
	}

	parent := prefix[open+1 : last]
	if i := strings.LastIndex(parent, "."); i != -1 {
		parent = parent[i+1:]
	}
	if i := strings.Index(parent, "["); i != -1 {
		parent = parent[:i]
	}
	return strings.TrimPrefix(parent, "agents.")
}

// schemaHasField reports whether the reported key resolves to a real
// schema field under any of the nesting shapes yamlFieldPaths emits.
func schemaHasField(fullPath, parent, key string, validFields []string) bool {
	for _, vf := range validFields {
		if vf == fullPath {
			return true
		}
		if parent == "search" && vf == "search."+key {
			return true
		}
		if strings.HasSuffix(vf, ".search."+key) ||
			strings.Contains(vf, ".search."+key+".") ||
			strings.Contains(vf, "search."+key) {
			return true
		}
	}
	return false
}

// parseTypeError lifts the field name out of a type-mismatch message.
func parseTypeError(errStr string) FieldError {
	fieldName := "unknown"
	if start := strings.Index(errStr, "'"); start != -1 {
		if end := strings.Index(errStr[start+1:], "'"); end != -1 {
			fieldName = errStr[start+1 : start+1+end]
		}
	}

	return FieldError{
		Field:    fieldName,
		Message:  errStr,
		Severity: SeverityError,
		Context:  "Check that the value type matches the expected type (string, number, boolean, etc.)",
	}
}

// yamlFieldPaths walks a struct type and returns every yaml-tagged field
// path it can reach, nested paths joined with dots. Map-valued fields
// (agents, llms, ...) contribute their value type's fields both with a
// "<agent-name>" placeholder segment and without, so suggestions match
// either way users write the path.
func yamlFieldPaths(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Map {
		return yamlFieldPaths(t.Elem())
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		name = strings.TrimSpace(name)
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, name)

		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		switch ft.Kind() {
		case reflect.Map:
			vt := ft.Elem()
			if vt.Kind() == reflect.Ptr {
				vt = vt.Elem()
			}
			for _, nf := range yamlFieldPaths(vt) {
				fields = append(fields, name+".<agent-name>."+nf, name+"."+nf)
			}
		case reflect.Struct:
			for _, nf := range yamlFieldPaths(ft) {
				fields = append(fields, name+"."+nf)
			}
		}
	}

	return fields
}

// findSimilarFields ranks schema fields by edit distance to the typo and
// returns the top three within maxDistance. Substring containment in
// either direction also qualifies, at the threshold distance, so partial
// names still get a hint.
func findSimilarFields(typo string, validFields []string, maxDistance int) []string {
	typoLower := strings.ToLower(typo)

	type scoredField struct {
		field    string
		distance int
	}
	var scored []scoredField

	for _, vf := range validFields {
		vfLower := strings.ToLower(vf)
		d := levenshteinDistance(typoLower, vfLower)
		switch {
		case d <= maxDistance:
			scored = append(scored, scoredField{vf, d})
		case strings.Contains(vfLower, typoLower) || strings.Contains(typoLower, vfLower):
			scored = append(scored, scoredField{vf, maxDistance})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].distance < scored[j].distance
	})

	var suggestions []string
	for i := 0; i < len(scored) && i < 3; i++ {
		suggestions = append(suggestions, scored[i].field)
	}
	return suggestions
}

// levenshteinDistance computes edit distance with a rolling two-row
// matrix.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
