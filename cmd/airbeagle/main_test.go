package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzyy94/airbeagle/internal/beagle"
	"github.com/mzyy94/airbeagle/internal/beagle/beagletest"
)

// startSim serves a simulated device on a loopback TCP port and returns its
// address in tcp:// form.
func startSim(t *testing.T) (*beagletest.Device, string) {
	t.Helper()
	sim := beagletest.New()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				_ = sim.Serve(conn)
				conn.Close()
			}()
		}
	}()
	return sim, "tcp://" + ln.Addr().String()
}

func writeImages(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := range n {
		img := image.NewGray(image.Rect(0, 0, 30, 40))
		for j := range img.Pix {
			img.Pix[j] = uint8(i * 100)
		}
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		name := filepath.Join(dir, "page_"+string(rune('0'+i))+".png")
		require.NoError(t, os.WriteFile(name, buf.Bytes(), 0o644))
	}
	return dir
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), &env{stdout: &out, stderr: &errOut}, args)
	return out.String(), err
}

func TestRun_Usage(t *testing.T) {
	_, err := runCmd(t)
	assert.ErrorIs(t, err, errUsage)

	_, err = runCmd(t, "frobnicate")
	assert.ErrorIs(t, err, errUsage)

	out, err := runCmd(t, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "usage: airbeagle")
}

func TestRun_ArgumentChecks(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"delete without id", []string{"delete"}},
		{"info with extra arg", []string{"info", "x"}},
		{"upload without images", []string{"upload", "--title", "x"}},
		{"virgin without confirmation", []string{"virgin"}},
		{"partner set and generate", []string{"partner", "--set", strings.Repeat("A", 32), "--generate"}},
		{"utility without index", []string{"utility", "x.png"}},
		{"preview without out", []string{"preview", "x.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, tt.args...)
			assert.ErrorIs(t, err, errUsage)
		})
	}
}

func TestRun_Info(t *testing.T) {
	_, addr := startSim(t)
	out, err := runCmd(t, "info", "--device", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "FIRMWARE.GIT")
	assert.Contains(t, out, "DEVICE.SERIAL")
}

func TestRun_UploadListDelete(t *testing.T) {
	sim, addr := startSim(t)
	dir := writeImages(t, 2)

	out, err := runCmd(t, "upload", "--device", addr, "-q", "--title", "Moby Dick", "--author", "Melville", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"Moby Dick"`)

	books := sim.Books()
	require.Len(t, books, 1)
	assert.Equal(t, "Melville", books[0].Author)
	assert.Equal(t, uint32(2), books[0].LastPage)

	out, err = runCmd(t, "books", "--device", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Moby Dick")
	assert.Contains(t, out, books[0].ID)

	_, err = runCmd(t, "delete", "--device", addr, strings.ToLower(books[0].ID))
	require.NoError(t, err)
	assert.Empty(t, sim.Books())

	_, err = runCmd(t, "delete", "--device", addr, books[0].ID)
	assert.ErrorIs(t, err, beagle.ErrDeleteRefused)
}

func TestRun_DeleteListedShortID(t *testing.T) {
	sim, addr := startSim(t)
	sim.AddBook(beagle.Book{ID: "3A4F00001234ABCD", Title: "Old"})

	out, err := runCmd(t, "books", "--device", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "3A4F00001234ABCD")

	out, err = runCmd(t, "delete", "--device", addr, "3A4F00001234ABCD")
	require.NoError(t, err)
	assert.Equal(t, "deleted 3A4F00001234ABCD\n", out)
	assert.Empty(t, sim.Books())
}

func TestRun_PartnerAndVirgin(t *testing.T) {
	sim, addr := startSim(t)

	out, err := runCmd(t, "partner", "--device", addr)
	require.NoError(t, err)
	assert.Equal(t, "no partner\n", out)

	out, err = runCmd(t, "partner", "--device", addr, "--generate")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	assert.Len(t, id, beagle.IDLen)
	assert.Equal(t, id, sim.Partner())

	sim.AddBook(beagle.Book{ID: "AA"})
	_, err = runCmd(t, "virgin", "--device", addr, "--yes")
	require.NoError(t, err)
	assert.Empty(t, sim.Books())
	assert.Empty(t, sim.Partner())
}

func TestRun_Utility(t *testing.T) {
	sim, addr := startSim(t)
	dir := writeImages(t, 1)

	_, err := runCmd(t, "utility", "--device", addr, "--index", "2", filepath.Join(dir, "page_0.png"))
	require.NoError(t, err)
	assert.Equal(t, map[int]int{2: 1}, sim.UtilityPages())
}

func TestRun_Preview(t *testing.T) {
	dir := writeImages(t, 3)
	out := filepath.Join(t.TempDir(), "book.pdf")

	stdout, err := runCmd(t, "preview", "--out", out, "--bookmark", "2", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "4 pages")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRun_UnreachableDevice(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := "tcp://" + ln.Addr().String()
	ln.Close()

	_, err = runCmd(t, "books", "--device", addr)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errUsage)
}

func TestGlobals_Settings(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "airbeagle.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("device = \"/dev/ttyX\"\nbaud = 9600\n"), 0o644))

	var g globals
	fs := newFlags(&env{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}, "t", &g)
	require.NoError(t, fs.Parse([]string{"--config", cfg, "--baud", "57600"}))
	s, err := g.settings(fs)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyX", s.Device, "file value kept when the flag is unset")
	assert.Equal(t, 57600, s.Baud, "flag wins over the file")

	require.NoError(t, fs.Set("log-level", "loud"))
	_, err = g.settings(fs)
	assert.Error(t, err)
}

func TestRun_ServeShutsDown(t *testing.T) {
	_, addr := startSim(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		var out, errOut bytes.Buffer
		done <- run(ctx, &env{stdout: &out, stderr: &errOut},
			[]string{"serve", "--device", addr, "--port", "0", "--no-mdns", "--memory", "--heartbeat", "0"})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
