package boot

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/catalog"
)

func TestConsoleSelectorPicksOS(t *testing.T) {
	var out bytes.Buffer
	sel := NewConsoleSelector(strings.NewReader("2\n"), &out)

	entries := []catalog.OSEntry{
		{Name: "RetroPie", Category: catalog.CategoryRetroPie, Bootable: true},
		{Name: "Raspbian", Category: catalog.CategoryStockOS, Bootable: true},
	}
	got, err := sel.Select(context.Background(), entries)
	require.NoError(t, err)
	require.NotNil(t, got.OS)
	assert.Equal(t, "Raspbian", got.OS.Name)
	assert.Contains(t, out.String(), "RetroPie")
	assert.Contains(t, out.String(), "Shutdown")
}

func TestConsoleSelectorAdminChoices(t *testing.T) {
	entries := []catalog.OSEntry{{Name: "RetroPie", Bootable: true}}

	// Choices 2..5 are the administrative tail after one OS entry.
	sel := NewConsoleSelector(strings.NewReader("5\n"), new(bytes.Buffer))
	got, err := sel.Select(context.Background(), entries)
	require.NoError(t, err)
	assert.Nil(t, got.OS)
	assert.Equal(t, AdminShutdown, got.Admin)
}

func TestConsoleSelectorRejectsBadInput(t *testing.T) {
	entries := []catalog.OSEntry{{Name: "RetroPie", Bootable: true}}

	for _, input := range []string{"0\n", "99\n", "banana\n"} {
		sel := NewConsoleSelector(strings.NewReader(input), new(bytes.Buffer))
		_, err := sel.Select(context.Background(), entries)
		assert.Error(t, err, "input %q", input)
	}
}

func TestConsoleSelectorRespectsContext(t *testing.T) {
	// A reader that never produces a line.
	blocked, _ := newBlockedReader()
	sel := NewConsoleSelector(blocked, new(bytes.Buffer))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sel.Select(ctx, []catalog.OSEntry{{Name: "RetroPie"}})
	assert.ErrorIs(t, err, context.Canceled)
}


func newBlockedReader() (*blockedReader, func()) {
	done := make(chan struct{})
	return &blockedReader{done: done}, func() { close(done) }
}

type blockedReader struct {
	done chan struct{}
}

func (b *blockedReader) Read([]byte) (int, error) {
	<-b.done
	return 0, context.Canceled
}
