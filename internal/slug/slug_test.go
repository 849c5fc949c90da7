package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "My Video", want: "my-video"},
		{name: "diacritics", in: "Configuración Básica", want: "configuracion-basica"},
		{name: "punctuation runs", in: "a -- b!!c", want: "a-b-c"},
		{name: "underscores kept", in: "intro_part_2", want: "intro_part_2"},
		{name: "leading trailing", in: "  (draft)  ", want: "draft"},
		{name: "empty", in: "", want: "untitled"},
		{name: "only symbols", in: "!!!", want: "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestStem(t *testing.T) {
	assert.Equal(t, "setup-guide", Stem("Setup Guide.mp4"))
	assert.Equal(t, "demo", Stem("videos/Demo.MOV"))
	assert.Equal(t, "noext", Stem("noext"))
}
