package tool

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/kit/pkg/errmodel"
	"github.com/wilhg/kit/pkg/jsonv"
	"github.com/wilhg/kit/pkg/prompt"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks a definition before it is stored: required fields, slug
// shape, that both schemas compile and describe objects, and that the
// system prompt passes lint. Lint findings other than a missing body are
// returned as warnings.
func Validate(d *Definition) (warnings []string, err error) {
	if d == nil {
		return nil, errmodel.Validation(errmodel.CodeInvalidDef, "tool definition is nil", nil)
	}
	if err := structValidator().Struct(d); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s:%s", strings.ToLower(fe.Field()), fe.Tag()))
			}
		}
		return nil, errmodel.Validation(errmodel.CodeInvalidDef, "tool definition is invalid", map[string]any{"slug": d.Slug, "fields": strings.Join(fields, ",")})
	}
	for name, raw := range map[string][]byte{"input_schema": d.InputSchema, "output_schema": d.OutputSchema} {
		if err := checkObjectSchema(raw); err != nil {
			return nil, errmodel.Validation(errmodel.CodeInvalidDef, "tool schema is invalid", map[string]any{"slug": d.Slug, "field": name, "error": err.Error()})
		}
	}
	for _, is := range prompt.Lint(d.Name, d.SystemPrompt) {
		warnings = append(warnings, is.Rule+": "+is.Message)
	}
	return warnings, nil
}

func checkObjectSchema(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] != '{' {
		return fmt.Errorf("schema must be a JSON object")
	}
	return CompileSchema(raw)
}

// CompileSchema compiles the provided JSON schema and returns an error only
// if the schema is invalid. It does not validate any instance data.
func CompileSchema(schema []byte) error {
	_, err := compile(schema)
	return err
}

// ValidateData validates data against a JSON schema. Ordered objects from
// jsonv are accepted. An empty schema accepts everything.
func ValidateData(schema []byte, data any) error {
	sch, err := compile(schema)
	if err != nil || sch == nil {
		return err
	}
	// round-trip through JSON so numbers and nested values take the shapes
	// the validator understands
	b, err := jsonv.Encode(data)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}

var compiled sync.Map // string(schema) -> *jsonschema.Schema

func compile(schema []byte) (*jsonschema.Schema, error) {
	schema = bytes.TrimSpace(schema)
	if len(schema) == 0 {
		return nil, nil
	}
	key := string(schema)
	if s, ok := compiled.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, err
	}
	if err := c.AddResource("mem://schema.json", doc); err != nil {
		return nil, err
	}
	sch, err := c.Compile("mem://schema.json")
	if err != nil {
		return nil, err
	}
	compiled.Store(key, sch)
	return sch, nil
}
