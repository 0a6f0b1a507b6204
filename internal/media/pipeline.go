package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/telegram"
)

const DefaultMaxDownload = "50 MB"

// Delivery paths, in the order they are tried.
const (
	PathCopy     = "copy"
	PathResend   = "resend"
	PathReupload = "reupload"
)

// ErrTooLarge is returned when an attachment exceeds the download cap.
var ErrTooLarge = errors.New("media: attachment exceeds download limit")

// Client is the subset of the Bot API the pipeline drives.
type Client interface {
	CopyMessage(ctx context.Context, chatID, fromChatID, messageID int64, caption string) error
	SendMedia(ctx context.Context, chatID int64, media core.Media, caption string) error
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	OpenFile(ctx context.Context, filePath string) (io.ReadCloser, error)
	UploadMedia(ctx context.Context, chatID int64, kind core.MediaKind, filename string, data io.Reader, caption string) error
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
}

// Observer is told the outcome of every path attempt.
type Observer interface {
	MediaAttempt(path string, ok bool)
}

type Request struct {
	TargetChat int64
	SourceChat int64
	MessageID  int64
	Media      core.Media
	Caption    string
}

type Result struct {
	Delivered bool
	Path      string
	Err       error
}

// Pipeline re-delivers an attachment into a target chat.
type Pipeline struct {
	client      Client
	observer    Observer
	maxDownload atomic.Int64
}

func New(client Client, maxDownload int64, observer Observer) *Pipeline {
	p := &Pipeline{client: client, observer: observer}
	p.SetMaxDownload(maxDownload)
	return p
}

// ParseMaxDownload parses a human size such as "50 MB" or "20MiB".
func ParseMaxDownload(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultMaxDownload
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("media: max download %q: %w", raw, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("media: max download %q must be positive", raw)
	}
	return int64(n), nil
}

// SetMaxDownload changes the download cap; non-positive restores the default.
func (p *Pipeline) SetMaxDownload(n int64) {
	if n <= 0 {
		n, _ = ParseMaxDownload(DefaultMaxDownload)
	}
	p.maxDownload.Store(n)
}

func (p *Pipeline) MaxDownload() int64 { return p.maxDownload.Load() }

// Deliver tries copy, then resend by file id, then download and re-upload.
// The last path only runs when Telegram refused the resend because the media
// is self-destructing.
func (p *Pipeline) Deliver(ctx context.Context, req Request) Result {
	var lastErr error
	videoNote := req.Media.Kind == core.MediaVideoNote

	if req.SourceChat != 0 && req.MessageID != 0 {
		caption := req.Caption
		if videoNote {
			caption = ""
		}
		err := p.client.CopyMessage(ctx, req.TargetChat, req.SourceChat, req.MessageID, caption)
		p.observe(PathCopy, err == nil)
		if err == nil {
			if videoNote {
				p.sendCaption(ctx, req)
			}
			return Result{Delivered: true, Path: PathCopy}
		}
		log.Printf("media: copy %d/%d -> %d failed: %v", req.SourceChat, req.MessageID, req.TargetChat, err)
		lastErr = err
	}

	if !req.Media.Present() {
		if lastErr == nil {
			lastErr = errors.New("media: nothing to deliver")
		}
		return Result{Err: lastErr}
	}

	err := p.client.SendMedia(ctx, req.TargetChat, req.Media, req.Caption)
	p.observe(PathResend, err == nil)
	if err == nil {
		if videoNote {
			p.sendCaption(ctx, req)
		}
		return Result{Delivered: true, Path: PathResend}
	}
	if !telegram.IsSelfDestructing(err) {
		log.Printf("media: resend %s failed: %v", req.Media.Kind, err)
		return Result{Err: err}
	}

	log.Printf("media: %s is self-destructing; trying download and re-upload", req.Media.Kind)
	err = p.reupload(ctx, req)
	p.observe(PathReupload, err == nil)
	if err != nil {
		log.Printf("media: re-upload %s failed: %v", req.Media.Kind, err)
		return Result{Err: err}
	}
	if videoNote {
		p.sendCaption(ctx, req)
	}
	return Result{Delivered: true, Path: PathReupload}
}

func (p *Pipeline) reupload(ctx context.Context, req Request) error {
	limit := p.MaxDownload()

	file, err := p.client.GetFile(ctx, req.Media.FileID)
	if err != nil {
		return err
	}
	if file.FileSize > limit {
		return fmt.Errorf("%w: %s > %s", ErrTooLarge, humanize.Bytes(uint64(file.FileSize)), humanize.Bytes(uint64(limit)))
	}

	body, err := p.client.OpenFile(ctx, file.FilePath)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return fmt.Errorf("media: download: %w", err)
	}
	if int64(len(data)) > limit {
		return fmt.Errorf("%w: more than %s", ErrTooLarge, humanize.Bytes(uint64(limit)))
	}
	if len(data) == 0 {
		return telegram.ErrEmptyFile
	}

	name := "media." + extension(file.FilePath)
	log.Printf("media: re-uploading %s as %s (%s)", req.Media.Kind, name, humanize.Bytes(uint64(len(data))))
	caption := req.Caption
	if req.Media.Kind == core.MediaVideoNote {
		caption = ""
	}
	return p.client.UploadMedia(ctx, req.TargetChat, req.Media.Kind, name, bytes.NewReader(data), caption)
}

func (p *Pipeline) sendCaption(ctx context.Context, req Request) {
	if req.Caption == "" {
		return
	}
	if _, err := p.client.SendMessage(ctx, req.TargetChat, req.Caption, nil); err != nil {
		log.Printf("media: caption to %d failed: %v", req.TargetChat, err)
	}
}

func (p *Pipeline) observe(path string, ok bool) {
	if p.observer != nil {
		p.observer.MediaAttempt(path, ok)
	}
}

func extension(filePath string) string {
	ext := strings.TrimPrefix(path.Ext(filePath), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}
