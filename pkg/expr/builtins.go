package expr

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"time"
)

func callBuiltin(name string, args []interface{}) (interface{}, error) {
	switch name {
	case "to_string":
		return toStringValue(arg(args, 0)), nil
	case "to_number":
		f, ok := toFloat(arg(args, 0))
		if !ok {
			return nil, fmt.Errorf("to_number: %v is not numeric", arg(args, 0))
		}
		return f, nil
	case "url_encode":
		return url.QueryEscape(toStringValue(arg(args, 0))), nil
	case "base64":
		return base64.StdEncoding.EncodeToString([]byte(toStringValue(arg(args, 0)))), nil
	case "count":
		return countArg(arg(args, 0)), nil
	case "max":
		return maxArgs(args), nil
	case "now":
		return float64(time.Now().UnixMilli()), nil
	case "not":
		return !truthy(arg(args, 0)), nil
	case "find_in":
		return findIn(arg(args, 0), arg(args, 1), arg(args, 2)), nil
	default:
		return nil, fmt.Errorf("unknown function %q", name)
	}
}

func arg(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func countArg(v interface{}) float64 {
	if v == nil {
		return 0
	}
	if s, ok := asSlice(v); ok {
		return float64(len(s))
	}
	return 0
}

func maxArgs(args []interface{}) float64 {
	var best float64
	seen := false
	for _, a := range args {
		f, ok := toFloat(a)
		if !ok {
			continue
		}
		if !seen || f > best {
			best = f
			seen = true
		}
	}
	return best
}

func findIn(arr, key, value interface{}) interface{} {
	items, ok := asSlice(arr)
	if !ok {
		return nil
	}
	keyName := toStringValue(key)
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if looseEqual(m[keyName], value) {
			return item
		}
	}
	return nil
}
