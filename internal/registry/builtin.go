package registry

import (
	"fmt"
	"time"
)

// valueList returns a fixed candidate list.
type valueList struct {
	values []string
}

func newValueList(params map[string]any) (FilterPlugin, error) {
	values, err := stringsParam(params, "values")
	if err != nil {
		return nil, err
	}
	return &valueList{values: values}, nil
}

func (v *valueList) Filter() ([]string, error) {
	return append([]string(nil), v.values...), nil
}

// dateTimeRange formats every date between start and end (inclusive) with
// the given layout, stepping by a fixed interval.
type dateTimeRange struct {
	start, end time.Time
	step       time.Duration
	pattern    string
}

func newDateTimeRange(params map[string]any) (FilterPlugin, error) {
	pattern, err := stringParam(params, "pattern")
	if err != nil {
		return nil, err
	}
	startStr, err := stringParam(params, "start")
	if err != nil {
		return nil, err
	}
	endStr, err := stringParam(params, "end")
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(pattern, startStr)
	if err != nil {
		return nil, fmt.Errorf("parse start %q with pattern %q: %w", startStr, pattern, err)
	}
	end, err := time.Parse(pattern, endStr)
	if err != nil {
		return nil, fmt.Errorf("parse end %q with pattern %q: %w", endStr, pattern, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %q is before start %q", endStr, startStr)
	}

	step := 24 * time.Hour
	if raw, ok := params["step"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be a string, got %T", "step", raw)
		}
		step, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("parse step %q: %w", s, err)
		}
		if step <= 0 {
			return nil, fmt.Errorf("step %q must be positive", s)
		}
	}

	return &dateTimeRange{start: start, end: end, step: step, pattern: pattern}, nil
}

func (d *dateTimeRange) Filter() ([]string, error) {
	var out []string
	for t := d.start; !t.After(d.end); t = t.Add(d.step) {
		out = append(out, t.Format(d.pattern))
	}
	return out, nil
}
