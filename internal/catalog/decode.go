package catalog

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"
)

// Format is a catalog file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// Extensions are the file extensions read by the loader.
var Extensions = []string{".yaml", ".yml", ".hcl"}

// FormatOf returns the format for a file name by extension.
func FormatOf(name string) (Format, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".hcl":
		return FormatHCL, true
	default:
		return "", false
	}
}

// fileDef is the decoded form of one catalog file, before validation.
type fileDef struct {
	Namespace string    `yaml:"namespace" validate:"required,keyns"`
	Items     []itemDef `yaml:"items" validate:"dive"`
}

// itemDef defines a single item.
type itemDef struct {
	Path        string            `yaml:"path" validate:"required,keypath"`
	Name        string            `yaml:"name" validate:"max=128"`
	Description string            `yaml:"description"`
	Labels      []string          `yaml:"labels" validate:"dive,required,max=64"`
	Relations   map[string]string `yaml:"relations" validate:"dive,keys,required,keyns,endkeys,required,keyref"`
	Properties  map[string]string `yaml:"properties"`
}

func decode(name string, format Format, src []byte) (*fileDef, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(src)
	case FormatHCL:
		return decodeHCL(name, src)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", name)
	}
}

func decodeYAML(src []byte) (*fileDef, error) {
	var def fileDef
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parse yaml")
	}
	return &def, nil
}

// hclFile mirrors fileDef in HCL block syntax:
//
//	namespace = "core"
//
//	item "fire" {
//	  name      = "Fire"
//	  labels    = ["element"]
//	  relations = { opposite = "water" }
//	  properties = { weight = 3 }
//	}
type hclFile struct {
	Namespace string    `hcl:"namespace"`
	Items     []hclItem `hcl:"item,block"`
}

type hclItem struct {
	Path        string            `hcl:"path,label"`
	Name        string            `hcl:"name,optional"`
	Description string            `hcl:"description,optional"`
	Labels      []string          `hcl:"labels,optional"`
	Relations   map[string]string `hcl:"relations,optional"`
	Properties  cty.Value         `hcl:"properties,optional"`
}

func decodeHCL(name string, src []byte) (*fileDef, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, name)
	if diags.HasErrors() {
		return nil, errors.Wrap(diags, "parse hcl")
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, errors.Wrap(diags, "decode hcl")
	}

	def := &fileDef{Namespace: parsed.Namespace, Items: make([]itemDef, 0, len(parsed.Items))}
	for _, it := range parsed.Items {
		props, err := stringMap(it.Properties)
		if err != nil {
			return nil, errors.Wrapf(err, "item %q properties", it.Path)
		}
		def.Items = append(def.Items, itemDef{
			Path:        it.Path,
			Name:        it.Name,
			Description: it.Description,
			Labels:      it.Labels,
			Relations:   it.Relations,
			Properties:  props,
		})
	}
	return def, nil
}

// stringMap flattens an HCL object or map of primitives into strings, the way
// YAML scalars decode into map[string]string.
func stringMap(v cty.Value) (map[string]string, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, errors.New("value must be known")
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, errors.Newf("expected an object, got %s", ty.FriendlyName())
	}

	out := make(map[string]string)
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		key := k.AsString()
		if ev.IsNull() {
			return nil, errors.Newf("%q must not be null", key)
		}
		s, err := convert.Convert(ev, cty.String)
		if err != nil {
			return nil, errors.Wrapf(err, "%q", key)
		}
		out[key] = s.AsString()
	}
	return out, nil
}
