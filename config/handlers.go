package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/olympus-go/cogs/cog"
	"gopkg.in/yaml.v3"
)

var ErrFieldNotExist = errors.New("field does not exist")

const messageLimit = 2000

func (p *Plugin) get(name string) func(context.Context, cog.Invocation, cog.Args) error {
	return func(_ context.Context, inv cog.Invocation, args cog.Args) error {
		config, ok := p.configs.Get(name)
		if !ok {
			return cog.NotFoundError("No config found for %s.", name)
		}

		value, err := getConfig(config.config, args.String("key"))
		if errors.Is(err, ErrFieldNotExist) {
			return cog.NotFoundError("I don't know what \"%s\" is.", args.String("key"))
		} else if err != nil {
			return err
		}

		b, err := yaml.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal config as yaml: %w", err)
		}

		message := fmt.Sprintf("%s config:\n```yaml\n%s```\n", name, b)
		if len(message) > messageLimit {
			message = "The config is too big to write here. Ask for a single key instead."
		}

		_, err = inv.Reply(cog.Response{Content: message, Ephemeral: true})
		return err
	}
}

func (p *Plugin) set(name string) func(context.Context, cog.Invocation, cog.Args) error {
	return func(_ context.Context, inv cog.Invocation, args cog.Args) error {
		config, ok := p.configs.Get(name)
		if !ok {
			return cog.NotFoundError("No config found for %s.", name)
		}

		key := args.String("key")
		value := args.String("value")

		// Shortcut to empty a string. RIP if you wanted to set a field to literally '""'.
		if value == "\"\"" {
			value = ""
		}

		if err := setConfig(config.config, key, value); errors.Is(err, ErrFieldNotExist) {
			return cog.NotFoundError("I don't know what \"%s\" is.", key)
		} else if err != nil {
			p.logger.Warn("failed to set config",
				slog.String("config", name),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return cog.InputError("Couldn't set %s: %v", key, err)
		}

		p.logger.Info("config updated",
			slog.String("config", name),
			slog.String("key", key),
			slog.String("user_id", inv.Author().ID),
		)

		if config.fn != nil {
			config.fn()
		}

		_, err := inv.Reply(cog.Response{Content: "Updated.", Ephemeral: true})
		return err
	}
}

func splitKey(key string) []string {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	fields := strings.Split(key, ".")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// lookup finds field in m ignoring case and returns the key as stored.
func lookup(m map[string]any, field string) (string, bool) {
	if _, ok := m[field]; ok {
		return field, true
	}
	for k := range m {
		if strings.EqualFold(k, field) {
			return k, true
		}
	}
	return "", false
}

func toMap(t any) (map[string]any, error) {
	v := make(map[string]any)
	if err := mapstructure.Decode(t, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func getConfig(t any, key string) (any, error) {
	v, err := toMap(t)
	if err != nil {
		return nil, err
	}

	var current any = v
	for _, field := range splitKey(key) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, ErrFieldNotExist
		}
		k, ok := lookup(m, field)
		if !ok {
			return nil, ErrFieldNotExist
		}
		current = m[k]
	}

	return current, nil
}

// setConfig sets the field at the dotted key path of t from its string form. Numbers, bools, durations and comma
// separated slices are converted to the field's type.
func setConfig(t any, key string, value string) error {
	v, err := toMap(t)
	if err != nil {
		return err
	}

	fields := splitKey(key)
	if len(fields) == 0 {
		return ErrFieldNotExist
	}

	currentValue := v
	for i, field := range fields {
		field, ok := lookup(currentValue, field)
		if !ok {
			return ErrFieldNotExist
		}
		current := currentValue[field]

		// Set the value when at the end of the split list, otherwise keep traversing the map.
		if i == len(fields)-1 {
			switch reflect.ValueOf(current).Kind() {
			case reflect.Map, reflect.Struct:
				return fmt.Errorf("%s is a section, pick one of its keys", key)
			case reflect.Slice:
				values := strings.Split(value, ",")
				for vIndex := range values {
					values[vIndex] = strings.TrimSpace(values[vIndex])
				}
				currentValue[field] = values
			default:
				currentValue[field] = value
			}
		} else {
			currentValue, ok = current.(map[string]any)
			if !ok {
				return ErrFieldNotExist
			}
		}
	}

	// Decode into a copy so a bad value leaves t untouched.
	target := reflect.ValueOf(t)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("config must be a non-nil pointer, got %T", t)
	}
	updated := reflect.New(target.Elem().Type())

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           updated.Interface(),
	})
	if err != nil {
		return err
	}
	if err = decoder.Decode(v); err != nil {
		return err
	}

	target.Elem().Set(updated.Elem())
	return nil
}
