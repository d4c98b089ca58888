package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/postchunk/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// ConfigFileEnv names the environment variable that points at an optional config file.
const ConfigFileEnv = "CONFIG_FILE"

// legacyEnv maps the flat variable names used by existing deployments to their
// yaml-derived equivalents. The yaml-derived name wins when both are set.
var legacyEnv = []struct {
	name   string
	target string
}{
	{"DB_TYPE", "DATABASE_TYPE"},
	{"DB_HOST", "DATABASE_HOST"},
	{"DB_PORT", "DATABASE_PORT"},
	{"DB_NAME", "DATABASE_DATABASE"},
	{"DB_USER", "DATABASE_USER"},
	{"DB_PASSWORD", "DATABASE_PASSWORD"},
	{"CHUNK_SIZE", "PROCESSING_CHUNK_SIZE"},
	{"BATCH_COMMIT_SIZE", "PROCESSING_BATCH_COMMIT_SIZE"},
	{"LOG_LEVEL", "SYSTEM_LOGGING_LEVEL"},
}

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// Embedded is the YAML compiled into the binary. It may be empty.
	Embedded EmbeddedConfig
	// ConfigFile is an optional YAML or JSON file. When empty, CONFIG_FILE is consulted.
	ConfigFile string
	// EnvFile is an optional .env file. When empty, ./.env is loaded if present.
	EnvFile string
}

// Load builds the configuration in this order, later sources overriding earlier ones:
// defaults, embedded YAML, the config file, then environment variables (after loading
// the .env file, which never overrides variables already set).
func Load(opts LoadOptions, log logger.Logger) (*Config, error) {
	log = log.Named("config")

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			log.Warnf(".env file (%s) not found or could not be loaded: %v", opts.EnvFile, err)
		}
	} else if err := godotenv.Load(); err != nil {
		log.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := NewConfig()

	if len(opts.Embedded) > 0 {
		if err := mergeYAML(cfg, opts.Embedded); err != nil {
			return nil, exception.NewBatchError(exception.ModuleConfig, "failed to parse embedded config", err, false, false)
		}
	}

	path := opts.ConfigFile
	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Infof("Config file %s not found, using environment variables", path)
		case err != nil:
			return nil, exception.NewBatchErrorf(exception.ModuleConfig, "failed to read config file %s", path, err)
		default:
			if err := mergeYAML(cfg, data); err != nil {
				return nil, exception.NewBatchErrorf(exception.ModuleConfig, "failed to parse config file %s", path, err)
			}
			log.Infof("Configuration loaded from %s", path)
		}
	}

	if err := applyLegacyEnv(cfg); err != nil {
		return nil, exception.NewBatchError(exception.ModuleConfig, "failed to load config from environment variables", err, false, false)
	}
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(exception.ModuleConfig, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// mergeYAML overlays a YAML (or JSON) document onto cfg. Keys absent from the document
// keep their current value.
func mergeYAML(cfg *Config, data []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if db, ok := raw["database"].(map[string]interface{}); ok {
		raw["database"] = normalizeDatabaseKeys(db)
	}
	return configbinder.Bind(raw, cfg)
}

func applyLegacyEnv(cfg *Config) error {
	for _, alias := range legacyEnv {
		value, ok := os.LookupEnv(alias.name)
		if !ok {
			continue
		}
		if _, overridden := os.LookupEnv(alias.target); overridden {
			continue
		}
		if err := setPath(reflect.ValueOf(cfg).Elem(), "", alias.target, value); err != nil {
			return fmt.Errorf("env var '%s': %w", alias.name, err)
		}
	}
	return nil
}

// setPath finds the field whose yaml-derived env name equals target and sets it.
func setPath(val reflect.Value, prefix, target, value string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		name := yamlName(typ.Field(i))
		if name == "" {
			continue
		}
		envVarName := strings.ToUpper(prefix + name)
		if field.Kind() == reflect.Struct {
			if strings.HasPrefix(target, envVarName+"_") {
				return setPath(field, envVarName+"_", target, value)
			}
			continue
		}
		if envVarName == target {
			return setField(field, value)
		}
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment
// variables. The variable name is the upper-cased path of yaml tags joined by "_".
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		name := yamlName(fieldType)
		if name == "" {
			continue
		}
		envVarName := strings.ToUpper(prefix + name)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			// CONNECTIONS_WRITER_HOST=... sets connections.writer.host
			loadOverridesFromEnv(field, envVarName+"_")
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadOverridesFromEnv fills a map[string]map[string]interface{} from variables of the form
// PREFIX_<KEY>_<FIELD>. Values stay strings; decoding converts them later.
func loadOverridesFromEnv(mapField reflect.Value, prefix string) {
	overrides, ok := mapField.Interface().(map[string]map[string]interface{})
	if !ok {
		return
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := strings.SplitN(parts[0], "_", 2)
		if len(keyAndField) != 2 || keyAndField[1] == "" {
			continue
		}
		key := strings.ToLower(keyAndField[0])
		if overrides == nil {
			overrides = map[string]map[string]interface{}{}
			mapField.Set(reflect.ValueOf(overrides))
		}
		if overrides[key] == nil {
			overrides[key] = map[string]interface{}{}
		}
		overrides[key][strings.ToLower(keyAndField[1])] = parts[1]
	}
}

func yamlName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, bool and comma-separated string slices.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		items := []string{}
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}
