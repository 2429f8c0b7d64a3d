// Package validation binds JSON request bodies and reports failures as a
// field-keyed error map, e.g. {"items.0.quantity": ["..."]}.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Errors maps a dotted field path to its messages.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Message summarises the errors the way the 422 envelope expects: the first
// message followed by a count of the remaining ones.
func (e Errors) Message() string {
	if len(e) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e))
	total := 0
	for k, msgs := range e {
		keys = append(keys, k)
		total += len(msgs)
	}
	sort.Strings(keys)

	first := e[keys[0]][0]
	switch rest := total - 1; rest {
	case 0:
		return first
	case 1:
		return fmt.Sprintf("%s (and 1 more error)", first)
	default:
		return fmt.Sprintf("%s (and %d more errors)", first, rest)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates s. It returns nil Errors when s is valid.
func Struct(s any) (Errors, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return nil, err
	}

	out := Errors{}
	for _, vErr := range vErrs {
		field := fieldPath(vErr.Namespace())
		out.Add(field, message(field, vErr))
	}
	return out, nil
}

// BindJSON decodes the request body into dst and validates it. On failure
// it aborts the request with 400 or 422 and returns false.
func BindJSON(c *gin.Context, dst any) bool {
	body, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return false
	}

	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				field := pathAtOffset(body, typeErr.Offset)
				if field == "" {
					field = typeErr.Field
				}
				errs := Errors{}
				errs.Add(field, fmt.Sprintf("The %s field must be %s.", display(field), kindName(typeErr.Type)))
				Abort(c, errs)
				return false
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return false
		}
	}

	errs, err := Struct(dst)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return false
	}
	if len(errs) > 0 {
		Abort(c, errs)
		return false
	}
	return true
}

// Abort writes the 422 envelope.
func Abort(c *gin.Context, errs Errors) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"message": errs.Message(),
		"errors":  errs,
	})
}

type pathFrame struct {
	array   bool
	index   int
	key     string
	wantKey bool
}

// pathAtOffset returns the dotted path, array indexes included, of the
// first value in body that ends at or after offset.
func pathAtOffset(body []byte, offset int64) string {
	dec := json.NewDecoder(bytes.NewReader(body))
	var stack []*pathFrame

	current := func() string {
		parts := make([]string, 0, len(stack))
		for _, f := range stack {
			if f.array {
				parts = append(parts, strconv.Itoa(f.index))
			} else {
				parts = append(parts, f.key)
			}
		}
		return strings.Join(parts, ".")
	}
	valueDone := func() {
		if n := len(stack); n > 0 {
			if top := stack[n-1]; top.array {
				top.index++
			} else {
				top.wantKey = true
			}
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if n := len(stack); n > 0 && stack[n-1].wantKey {
			if key, ok := tok.(string); ok {
				stack[n-1].key = key
				stack[n-1].wantKey = false
				continue
			}
		}

		switch tok {
		case json.Delim('{'), json.Delim('['):
			if dec.InputOffset() >= offset {
				return current()
			}
			isArray := tok == json.Delim('[')
			stack = append(stack, &pathFrame{array: isArray, wantKey: !isArray})
		case json.Delim('}'), json.Delim(']'):
			stack = stack[:len(stack)-1]
			valueDone()
		default:
			if dec.InputOffset() >= offset {
				return current()
			}
			valueDone()
		}
	}
}

// fieldPath turns "request.items[0].quantity" into "items.0.quantity".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	namespace = strings.ReplaceAll(namespace, "[", ".")
	return strings.ReplaceAll(namespace, "]", "")
}

func message(field string, fe validator.FieldError) string {
	name := display(field)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "min":
		switch fe.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("The %s field must have at least %s items.", name, fe.Param())
		case reflect.String:
			return fmt.Sprintf("The %s field must be at least %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s.", name, fe.Param())
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

func display(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func kindName(t reflect.Type) string {
	if t == nil {
		return "valid"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Bool:
		return "true or false"
	default:
		return "valid"
	}
}
