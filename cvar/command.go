// Package cvar mirrors console variables of the target into typed values
// and registers the ones a driver needs when the target lacks them.
package cvar

import (
	"math"
	"strconv"
	"strings"
)

// CustomCommand is one named toggle. Its value is only touched from the
// polling goroutine.
type CustomCommand struct {
	Name        string
	Default     string
	Description string

	value string
}

func New(name, def, description string) *CustomCommand {
	return &CustomCommand{
		Name:        name,
		Default:     def,
		Description: description,
		value:       def,
	}
}

func (c *CustomCommand) Value() string {
	return c.value
}

// Set stores v locally; Handler.Set also pushes it to the target
func (c *CustomCommand) Set(v string) {
	c.value = strings.TrimSpace(v)
}

// Float parses the value; anything unparsable reads as 0
func (c *CustomCommand) Float() float64 {
	f, err := strconv.ParseFloat(c.value, 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return f
}

// Int truncates Float toward zero
func (c *CustomCommand) Int() int {
	if i, err := strconv.Atoi(c.value); err == nil {
		return i
	}
	return int(c.Float())
}

// Bool is true for any nonzero number
func (c *CustomCommand) Bool() bool {
	return c.Float() != 0
}
