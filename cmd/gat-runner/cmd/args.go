package cmd

import "strings"

// legacyFlags maps the multi-letter single-dash flags to their long names.
var legacyFlags = map[string]string{ //nolint:gochecknoglobals // Read-only lookup table.
	"-l1": "--language1",
	"-l2": "--language2",
	"-n1": "--name1",
	"-n2": "--name2",
	"-ll": "--loglevel",
	"-pl": "--player_log",
}

// separateBoolValues are the spellings joined to --player_log when given as their own word.
var separateBoolValues = map[string]bool{ //nolint:gochecknoglobals // Read-only lookup table.
	"True":  true,
	"true":  true,
	"1":     true,
	"False": true,
	"false": true,
	"0":     true,
}

// NormalizeArgs rewrites the historical flag spellings into ones cobra understands.
//
// -l1 python becomes --language1 python, --no-replay becomes --replay=false and
// a boolean given as a separate word (-pl True) is joined to its flag.
// Everything after "--" is kept verbatim.
func NormalizeArgs(args []string) []string {
	normalized := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			normalized = append(normalized, args[i:]...)
			break
		}

		if arg == "--no-replay" {
			normalized = append(normalized, "--replay=false")
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")
		if long, found := legacyFlags[name]; found {
			name = long

			arg = long
			if hasValue {
				arg += "=" + value
			}
		}

		if name == "--player_log" && !hasValue && i+1 < len(args) {
			if separateBoolValues[args[i+1]] {
				arg = name + "=" + args[i+1]
				i++
			}
		}

		normalized = append(normalized, arg)
	}

	return normalized
}
