// Package command parses the operator command lines accepted on the event
// pipe, MQTT, the remote panel and the console.
//
// Grammar:
//
//	mode [scanner|list]            - switch source, or toggle without argument
//	scan [start|stop|toggle]       - arm or disarm the barcode scanner
//	list load <path>               - load a list file
//	list [start|stop|toggle]       - list traversal
//	flip                           - rotate the display
//	seek <+n|-n>                   - move the list position
//	barcode <value>                - inject a decode
//	tag [blank|ndef|small|readonly|unsupported]
//	                               - present a virtual tag
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmpty is returned for blank lines and comments.
var ErrEmpty = errors.New("empty command")

// Kind is the command verb.
type Kind string

const (
	Mode    Kind = "mode"
	Scan    Kind = "scan"
	List    Kind = "list"
	Flip    Kind = "flip"
	Seek    Kind = "seek"
	Barcode Kind = "barcode"
	Tag     Kind = "tag"
)

// Command is one parsed line.
type Command struct {
	Kind  Kind
	Arg   string // sub-command or mode/tag name
	Value string // list path or barcode text
	Delta int
}

// Parse parses a command line. Keywords are case-insensitive; the value of
// barcode and list load keeps its case and inner spacing.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Command{}, ErrEmpty
	}
	parts := strings.Fields(line)
	kind := Kind(strings.ToLower(parts[0]))
	rest := strings.TrimSpace(line[len(parts[0]):])
	arg := ""
	if len(parts) > 1 {
		arg = strings.ToLower(parts[1])
	}

	switch kind {
	case Mode:
		switch arg {
		case "":
		case "scanner", "scan", "barcode":
			arg = "scanner"
		case "list", "csv":
			arg = "list"
		default:
			return Command{}, fmt.Errorf("unknown mode %q", parts[1])
		}
		return Command{Kind: Mode, Arg: arg}, nil

	case Scan:
		if arg == "" {
			arg = "toggle"
		}
		if !oneOf(arg, "start", "stop", "toggle") {
			return Command{}, fmt.Errorf("scan: unknown action %q", parts[1])
		}
		return Command{Kind: Scan, Arg: arg}, nil

	case List:
		if arg == "" {
			arg = "toggle"
		}
		if arg == "load" {
			path := strings.TrimSpace(rest[len(parts[1]):])
			if path == "" {
				return Command{}, errors.New("list load requires a path")
			}
			return Command{Kind: List, Arg: arg, Value: path}, nil
		}
		if !oneOf(arg, "start", "stop", "toggle") {
			return Command{}, fmt.Errorf("list: unknown action %q", parts[1])
		}
		return Command{Kind: List, Arg: arg}, nil

	case Flip:
		return Command{Kind: Flip}, nil

	case Seek:
		if arg == "" {
			return Command{}, errors.New("seek requires a delta")
		}
		delta, err := strconv.Atoi(arg)
		if err != nil || delta == 0 {
			return Command{}, fmt.Errorf("invalid seek delta: %s", parts[1])
		}
		return Command{Kind: Seek, Delta: delta}, nil

	case Barcode:
		if rest == "" {
			return Command{}, errors.New("barcode requires a value")
		}
		return Command{Kind: Barcode, Value: rest}, nil

	case Tag:
		if arg == "" {
			arg = "ndef"
		}
		if !oneOf(arg, "blank", "ndef", "small", "readonly", "unsupported") {
			return Command{}, fmt.Errorf("unknown tag kind %q", parts[1])
		}
		return Command{Kind: Tag, Arg: arg}, nil
	}
	return Command{}, fmt.Errorf("unknown command: %s", parts[0])
}

func oneOf(s string, set ...string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// String formats the command so that Parse returns it unchanged.
func (c Command) String() string {
	switch c.Kind {
	case Seek:
		return fmt.Sprintf("seek %+d", c.Delta)
	case Barcode:
		return "barcode " + c.Value
	case List:
		if c.Arg == "load" {
			return "list load " + c.Value
		}
	case Flip:
		return "flip"
	}
	if c.Arg == "" {
		return string(c.Kind)
	}
	return string(c.Kind) + " " + c.Arg
}
