// Package jsonutil tolerates the loose typing of LLM-produced JSON.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases
// where LLMs return numbers or booleans instead of strings. Returns empty
// string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// FlexibleFloatValue converts a json.RawMessage to a float64, handling cases
// where LLMs quote numbers ("0.8") or append noise ("0.8/1.0"). Returns an
// error when no leading number can be recovered.
func FlexibleFloatValue(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("empty value")
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal, nil
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err != nil {
		return 0, fmt.Errorf("value %q is not a number", raw)
	}

	strVal = strings.TrimSpace(strVal)
	if f, err := strconv.ParseFloat(strVal, 64); err == nil {
		return f, nil
	}

	// Take the leading numeric run, so "0.8/1.0" and "0.8 out of 1" parse.
	end := 0
	for end < len(strVal) && (strVal[end] == '.' || strVal[end] == '-' ||
		(strVal[end] >= '0' && strVal[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("value %q is not a number", strVal)
	}
	return strconv.ParseFloat(strVal[:end], 64)
}
