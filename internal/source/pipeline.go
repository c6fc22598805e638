package source

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	applog "soundviz/internal/log"
)

// pcmPipeline isolates the external download/decode process model from
// the stream adapter: it spawns a downloader (yt-dlp compatible) and a
// decoder (ffmpeg compatible) and exposes the decoder's stdout as a raw
// little-endian float32 PCM byte stream. The adapter above it only ever
// sees "bytes until EOF or error".
type pcmPipeline struct {
	downloaderBin string
	decoderBin    string
	sampleRate    float64
	url           string

	mu      sync.Mutex
	decoder *exec.Cmd
	tmpFile string
}

// Open downloads the source and starts the decoder at realtime speed.
// Download or spawn failures are fatal startup errors for the caller.
func (p *pcmPipeline) Open() (io.ReadCloser, error) {
	path, err := p.download()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.tmpFile = path
	p.mu.Unlock()

	// -re paces decoding at realtime so the play buffer fills at
	// playback speed instead of as fast as the decoder can run.
	cmd := exec.Command(p.decoderBin,
		"-re",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(int(p.sampleRate)),
		"-loglevel", "quiet",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to pipe decoder output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn %s (is it installed?): %w", p.decoderBin, err)
	}

	p.mu.Lock()
	p.decoder = cmd
	p.mu.Unlock()

	applog.Infof("Stream: decoding %s at %.0f Hz mono", filepath.Base(path), p.sampleRate)
	return stdout, nil
}

// download fetches the URL into a temp file and returns its path.
func (p *pcmPipeline) download() (string, error) {
	tmpDir := os.TempDir()
	stem := fmt.Sprintf("soundviz_%d", os.Getpid())
	template := filepath.Join(tmpDir, stem+".%(ext)s")

	applog.Infof("Stream: downloading %s", p.url)
	cmd := exec.Command(p.downloaderBin,
		"-f", "bestaudio[ext=m4a]/bestaudio[ext=mp4]/bestaudio",
		"--no-playlist",
		"-o", template,
		p.url,
	)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed (is it installed?): %w", p.downloaderBin, err)
	}

	return findDownloaded(tmpDir, stem)
}

// findDownloaded locates the file the downloader wrote; the downloader
// picks the extension, so the exact name is not known up front.
func findDownloaded(dir, stem string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), stem) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("could not find the downloaded audio file in %s", dir)
}

// Close terminates the decoder, reaps it, and removes the temp file.
// Safe to call more than once and while a read is in flight.
func (p *pcmPipeline) Close() {
	p.mu.Lock()
	decoder := p.decoder
	tmpFile := p.tmpFile
	p.decoder = nil
	p.tmpFile = ""
	p.mu.Unlock()

	if decoder != nil && decoder.Process != nil {
		if err := decoder.Process.Kill(); err != nil {
			applog.Debugf("Stream: kill decoder: %v", err)
		}
		_ = decoder.Wait()
	}
	if tmpFile != "" {
		if err := os.Remove(tmpFile); err != nil && !os.IsNotExist(err) {
			applog.Debugf("Stream: remove temp file: %v", err)
		}
	}
}
