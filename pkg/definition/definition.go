package definition

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"conveyor/pkg/api"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a pipeline definition file. YAML is the primary
// format; files ending in .json are decoded as JSON.
func Load(path string) (api.PipelineSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return api.PipelineSpec{}, errors.Wrapf(err, "cannot open definition file %s", path)
	}
	defer f.Close()

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	spec, err := Parse(f, format)
	if err != nil {
		return api.PipelineSpec{}, errors.Wrapf(err, "cannot load definition file %s", path)
	}
	return spec, nil
}

// Parse decodes and validates a pipeline definition from the given reader.
// format is "yaml" or "json".
func Parse(r io.Reader, format string) (api.PipelineSpec, error) {
	var spec api.PipelineSpec
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return api.PipelineSpec{}, errors.Wrap(err, "cannot decode definition as YAML")
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&spec); err != nil {
			return api.PipelineSpec{}, errors.Wrap(err, "cannot decode definition as JSON")
		}
	default:
		return api.PipelineSpec{}, errors.Errorf("unknown definition format %s", format)
	}
	if err := spec.Validate(); err != nil {
		return api.PipelineSpec{}, err
	}
	return spec, nil
}
