package ctrl

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command errors.
var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
)

// Command is a parsed control command line.
//
// Tokens of the form key=value become Params; bare tokens after the name
// become Args, in order.
type Command struct {
	Name   string
	Args   []string
	Params map[string]string
}

// ParseCommand splits a control command line.
func ParseCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}

	c := &Command{
		Name:   strings.ToUpper(fields[0]),
		Params: make(map[string]string),
	}
	for _, tok := range fields[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			c.Args = append(c.Args, tok)
			continue
		}
		if key == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadArgument, tok)
		}
		c.Params[key] = value
	}
	return c, nil
}

// Has reports whether a bare argument is present.
func (c *Command) Has(arg string) bool {
	for _, a := range c.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// String returns the named parameter, or def if absent.
func (c *Command) String(key, def string) string {
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

// Int returns the named parameter as an integer in [min, max], or def if
// absent.
func (c *Command) Int(key string, def, min, max int) (int, error) {
	v, ok := c.Params[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%w: %s=%s", ErrBadArgument, key, v)
	}
	return n, nil
}

// Bool returns the named 0/1 parameter, or def if absent.
func (c *Command) Bool(key string, def bool) (bool, error) {
	v, ok := c.Params[key]
	if !ok {
		return def, nil
	}
	return parseBool(key, v)
}

// Hex returns the named hex-encoded parameter, or nil if absent.
func (c *Command) Hex(key string) ([]byte, error) {
	v, ok := c.Params[key]
	if !ok {
		return nil, nil
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%s", ErrBadArgument, key, v)
	}
	return b, nil
}

func parseBool(key, v string) (bool, error) {
	switch v {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s=%s", ErrBadArgument, key, v)
	}
}
