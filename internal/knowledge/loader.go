// Package knowledge loads the ground-truth knowledge base the supervisor
// checks bot responses against.
package knowledge

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

//go:embed knowledge_base.json
var defaultDocument []byte

// Default returns the embedded knowledge base
func Default() (*domain.KnowledgeBase, error) {
	return Parse(defaultDocument, "json")
}

// Load reads the knowledge base at path. An empty path selects the embedded
// document. The format is taken from the file extension (json, yaml, toml).
func Load(path string) (*domain.KnowledgeBase, error) {
	if path == "" {
		return Default()
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKnowledgeBase, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrInvalidKnowledgeBase, path, err)
	}

	return decode(v)
}

// Parse decodes a knowledge base document of the given format
func Parse(data []byte, format string) (*domain.KnowledgeBase, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: failed to parse document: %v", domain.ErrInvalidKnowledgeBase, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	if err := v.Unmarshal(&kb, strictDecoding); err != nil {
		return nil, fmt.Errorf("%w: failed to decode document: %v", domain.ErrInvalidKnowledgeBase, err)
	}

	if err := requireAvailability(v.Get("products")); err != nil {
		return nil, err
	}

	if err := Validate(&kb); err != nil {
		return nil, err
	}

	return &kb, nil
}

// strictDecoding turns off viper's weak typing: strings are not numbers,
// unknown keys are errors and integer fields reject fractional values.
func strictDecoding(c *mapstructure.DecoderConfig) {
	c.WeaklyTypedInput = false
	c.ErrorUnused = true
	c.DecodeHook = rejectFractionalInts
}

func rejectFractionalInts(from, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
	default:
		return data, nil
	}

	f := reflect.ValueOf(data).Float()
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil, fmt.Errorf("expected a whole number, got %v", f)
	}
	return data, nil
}

// requireAvailability checks every product states "available" explicitly,
// since a missing flag would silently read as out of stock.
func requireAvailability(raw any) error {
	var products []map[string]any
	switch raw := raw.(type) {
	case []map[string]any:
		products = raw
	case []any:
		for _, p := range raw {
			fields, _ := p.(map[string]any)
			products = append(products, fields)
		}
	}

	for i, fields := range products {
		if fields == nil {
			continue
		}
		found := false
		for k := range fields {
			if strings.EqualFold(k, "available") {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: products[%d] is missing \"available\"", domain.ErrInvalidKnowledgeBase, i)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the knowledge base against its schema
func Validate(kb *domain.KnowledgeBase) error {
	if kb == nil {
		return fmt.Errorf("%w: document is empty", domain.ErrInvalidKnowledgeBase)
	}
	if err := validate.Struct(kb); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidKnowledgeBase, err)
	}
	return nil
}
