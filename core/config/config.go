package config

import (
	_ "embed"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

// ConfigurationName is the file name a configuration directory must hold.
const ConfigurationName = "config.yaml"

// Configuration holds the engine settings read once at startup.
type Configuration struct {
	// SearchPath is the ordered list of directories consulted when
	// resolving bare command names.
	SearchPath []string `json:"search_path" validate:"required,min=1"`

	// RecordSeparator splits process output into records. Empty means
	// the platform newline.
	RecordSeparator string `json:"record_separator"`

	// Umask is the octal creation mask applied to spawned processes,
	// e.g. "022". Empty leaves the inherited mask.
	Umask string `json:"umask" validate:"omitempty,max=4"`

	// Debug turns on diagnostic notifications in the event log.
	Debug bool `json:"debug"`

	// LogPath receives the JSON-lines job event log. Empty disables it.
	LogPath string `json:"log_path"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := c.UmaskBits(); err != nil {
		return err
	}
	return nil
}

// UmaskBits parses the octal umask. Returns -1 if none is configured.
func (c *Configuration) UmaskBits() (int, error) {
	if c.Umask == "" {
		return -1, nil
	}
	bits, err := strconv.ParseInt(c.Umask, 8, 32)
	if err != nil || bits < 0 {
		return -1, fmt.Errorf("umask: %q is not an octal mask", c.Umask)
	}
	return int(bits), nil
}

// Default returns the compiled-in configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		// The default is compiled in, failure is a build defect.
		panic(err)
	}
	return &out
}
