package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "ring twice", want: "ring twice"},
		{name: "ampersand", in: "Tom & Jerry", want: "Tom & Jerry"},
		{name: "less than", in: "qty < 5 please", want: "qty < 5 please"},
		{name: "quotes", in: `deliver to "Gate 3"`, want: `deliver to "Gate 3"`},
		{name: "apostrophe", in: "O'Brien's dock", want: "O'Brien's dock"},
		{name: "script", in: `<script>alert(1)</script>Leave at <b>dock 4</b>`, want: "Leave at dock 4"},
		{name: "markup and entity", in: "<i>salt &amp; pepper</i>", want: "salt & pepper"},
		{name: "whitespace", in: "  <p>hi</p>  ", want: "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}
