package lesson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Option is one labeled MCQ choice.
type Option struct {
	Label string
	Text  string
}

// Options is an ordered label → text mapping. It serializes as a JSON
// object whose key order is the display order.
type Options []Option

// Get returns the text for label.
func (o Options) Get(label string) (string, bool) {
	for _, opt := range o {
		if opt.Label == label {
			return opt.Text, true
		}
	}
	return "", false
}

// Labels returns the labels in display order.
func (o Options) Labels() []string {
	out := make([]string, len(o))
	for i, opt := range o {
		out[i] = opt.Label
	}
	return out
}

func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, opt := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(opt.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(opt.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Options) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("options: invalid JSON")
	}
	*o = optionsFromResult(gjson.ParseBytes(data))
	return nil
}

// optionsFromResult reads an object in key order. A bare list such as
// ["A) red", "B) blue"] is also accepted; labels are taken from an
// "X)" prefix when present and assigned A, B, C... otherwise.
func optionsFromResult(r gjson.Result) Options {
	out := Options{}
	switch {
	case r.IsObject():
		r.ForEach(func(k, v gjson.Result) bool {
			out = append(out, Option{Label: k.String(), Text: v.String()})
			return true
		})
	case r.IsArray():
		i := 0
		r.ForEach(func(_, v gjson.Result) bool {
			label, text := splitLabel(v.String(), i)
			out = append(out, Option{Label: label, Text: text})
			i++
			return true
		})
	}
	return out
}

func splitLabel(s string, i int) (string, string) {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ").:"); idx > 0 && idx <= 2 {
		return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:])
	}
	return string(rune('A' + i%26)), s
}
