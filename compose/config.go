// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compose

import (
	_ "embed"
	"errors"

	"github.com/z5labs/atk/attribute"
	"github.com/z5labs/atk/host"
	"github.com/z5labs/atk/key"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
)

//go:embed defaults/default-compose.yml
var defaultTemplate []byte

// DefaultTemplate returns the compose document every config file is merged
// into. The returned slice is a copy.
func DefaultTemplate() []byte {
	b := make([]byte, len(defaultTemplate))
	copy(b, defaultTemplate)
	return b
}

// Built-in attribute names, as exposed to interpolation.
const (
	ProjectAttr             = "project"
	ProjectRootAttr         = "project_root"
	HostUsernameAttr        = "host_username"
	ContainerUsernameAttr   = "container_username"
	UIDAttr                 = "uid"
	GIDAttr                 = "gid"
	DefaultServicesAttr     = "default_services"
	DefaultContainersAttr   = "default_containers"
	OverwriteListsAttr      = "overwrite_lists"
	CustomCLIArgumentsAttr  = "custom_cli_arguments"
	HardwareAttributesAttr  = "hardware_specific_attributes"
	ServicesAttr            = "services"
	defaultRequestedService = "dev"
)

// Config is the typed view of the built-in attributes of a config file.
type Config struct {
	Project           string   `attr:"project" validate:"required,lowercase"`
	ProjectRoot       string   `attr:"project_root" validate:"required"`
	HostUsername      string   `attr:"host_username"`
	ContainerUsername string   `attr:"container_username" validate:"required"`
	UID               int      `attr:"uid" validate:"gte=0"`
	GID               int      `attr:"gid" validate:"gte=0"`
	DefaultServices   []string `attr:"default_services"`
	DefaultContainers []string `attr:"default_containers"`
	OverwriteLists    bool     `attr:"overwrite_lists"`
}

// Requested returns the services a generation is limited to. A non-empty
// DefaultContainers takes precedence over DefaultServices.
func (c Config) Requested() []string {
	if len(c.DefaultContainers) > 0 {
		return c.DefaultContainers
	}
	return c.DefaultServices
}

var validate = validator.New()

// decodeConfig decodes r into a Config, applies overrides on top of it and
// validates the result. Validation failures are reported as a
// [*attribute.ValidationError].
func decodeConfig(r *attribute.Resolved, overrides Config) (Config, error) {
	var cfg Config
	err := r.Decode(&cfg)
	if err != nil {
		return Config{}, err
	}

	err = mergo.Merge(&cfg, overrides, mergo.WithOverride)
	if err != nil {
		return Config{}, err
	}

	err = validate.Struct(cfg)
	if err == nil {
		return cfg, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Config{}, err
	}
	errs := make([]error, len(verrs))
	for i, verr := range verrs {
		errs[i] = verr
	}
	return Config{}, &attribute.ValidationError{Errors: errs}
}

// builtinSchema registers the attributes every config file may carry.
// Defaults for the user attributes come from id and root.
func builtinSchema(id host.Identity, root string) *attribute.Schema {
	var s attribute.Schema
	s.Register(key.Of(ProjectAttr), attribute.String)
	s.Register(key.Of(ProjectRootAttr), attribute.String, attribute.Default(root))
	s.Register(key.Of("user"), attribute.Mapping, attribute.Default(map[string]any{}))
	s.Register(key.Of("user", HostUsernameAttr), attribute.String, attribute.Default(id.Username))
	s.Register(key.Of("user", ContainerUsernameAttr), attribute.String, attribute.Default("@"+ProjectAttr))
	s.Register(key.Of("user", UIDAttr), attribute.Int, attribute.Default(id.UID))
	s.Register(key.Of("user", GIDAttr), attribute.Int, attribute.Default(id.GID))
	s.Register(key.Of(DefaultServicesAttr), attribute.Sequence, attribute.Default([]string{defaultRequestedService}))
	s.Register(key.Of(DefaultContainersAttr), attribute.Sequence, attribute.Default([]string{}))
	s.Register(key.Of(OverwriteListsAttr), attribute.Bool, attribute.Default(false))
	s.Register(key.Of(CustomCLIArgumentsAttr), attribute.Mapping, attribute.Default(map[string]any{}))
	s.Register(key.Of(HardwareAttributesAttr), attribute.Sequence, attribute.Default([]any{}))
	s.Register(key.Of(ServicesAttr), attribute.Mapping, attribute.Default(map[string]any{}), attribute.Keep())
	return &s
}
