package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactorHTML(t *testing.T) {
	t.Run("value sanitizes", func(t *testing.T) {
		r := NewRedactorHTML("<p onclick=\"x()\">Доход<script>alert(1)</script>\u200B</p>")
		v, err := r.Value()
		require.NoError(t, err)
		assert.Equal(t, "<p>Доход</p>", v)
	})

	t.Run("json", func(t *testing.T) {
		var r RedactorHTML
		require.NoError(t, json.Unmarshal([]byte(`"<p>a &amp; b<iframe src=\"https://evil.example.com\"></iframe></p>"`), &r))
		assert.Equal(t, "<p>a &amp; b</p>", r.Body)
		assert.True(t, r.AlreadySanitized)

		out, err := json.Marshal(r)
		require.NoError(t, err)
		assert.Equal(t, `"<p>a &amp; b</p>"`, string(out))
	})

	t.Run("strip tags", func(t *testing.T) {
		r := NewRedactorHTML("<h1>Облигации</h1><p>Купон <strong>5%</strong></p>")
		assert.Equal(t, "ОблигацииКупон 5%", r.StripTags())
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, NewRedactorHTML("<p></p><p> </p>").IsEmpty())
		assert.False(t, NewRedactorHTML("<p>x</p>").IsEmpty())
	})

	t.Run("scan", func(t *testing.T) {
		var r RedactorHTML
		require.NoError(t, r.Scan([]byte("<p>x</p>")))
		assert.Equal(t, "<p>x</p>", r.String())
		assert.Error(t, r.Scan(42))
	})
}
