package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/activity"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/media"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/nextcloud"
)

// previewUploadDir holds local HTML files shared for a preview.
const previewUploadDir = "/Bot-Previews"

// localPrefixes mark /preview paths on the bot host rather than in Nextcloud.
var localPrefixes = []string{"/home/", "/opt/", "/tmp/"}

func isLocalPath(p string) bool {
	for _, prefix := range localPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func ensureLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

func (o *Orchestrator) handleShare(ctx context.Context, t *turn, arg string) bool {
	filePath := ensureLeadingSlash(arg)
	o.progress(ctx, t, fmt.Sprintf(msgSharing, filePath))

	if _, err := t.bot.Platform.ShareFile(ctx, filePath, t.token, ""); err != nil {
		t.log.Warn().Err(err).Str("path", filePath).Msg("Failed to share file")
		return o.send(ctx, t, fmt.Sprintf(msgShareFailed, filePath))
	}
	return o.send(ctx, t, fmt.Sprintf(msgShared, filePath))
}

// uploadAndShare uploads a local file and shares it into the conversation. A failed share
// after a successful upload is reported through shared=false.
func (o *Orchestrator) uploadAndShare(ctx context.Context, t *turn, localPath, remotePath string) (up *nextcloud.Upload, shared bool, err error) {
	up, err = t.bot.Platform.UploadFile(ctx, localPath, remotePath)
	if err != nil {
		return nil, false, err
	}
	if _, err := t.bot.Platform.ShareFile(ctx, up.RemotePath, t.token, ""); err != nil {
		t.log.Warn().Err(err).Str("path", up.RemotePath).Msg("Uploaded file could not be shared")
		return up, false, nil
	}
	return up, true, nil
}

func (o *Orchestrator) handleUpload(ctx context.Context, t *turn, localPath string) bool {
	if _, err := os.Stat(localPath); err != nil {
		return o.send(ctx, t, fmt.Sprintf(msgFileNotFound, localPath))
	}
	o.progress(ctx, t, fmt.Sprintf(msgUploading, filepath.Base(localPath)))

	up, shared, err := o.uploadAndShare(ctx, t, localPath, "")
	switch {
	case err != nil:
		t.log.Error().Err(err).Str("path", localPath).Msg("Upload failed")
		return o.send(ctx, t, fmt.Sprintf(msgUploadFailed, localPath, err))
	case shared:
		return o.send(ctx, t, fmt.Sprintf(msgUploaded, up.Name, up.RemotePath))
	default:
		return o.send(ctx, t, fmt.Sprintf(msgUploadNoShare, up.Name, up.RemotePath))
	}
}

func formatSize(size int64) string {
	kb := float64(size) / 1024
	if size <= 0 {
		kb = 0
	}
	if kb >= 1024 {
		return fmt.Sprintf("%.1f MB", kb/1024)
	}
	return fmt.Sprintf("%.0f KB", kb)
}

func (o *Orchestrator) handleSearch(ctx context.Context, t *turn, query string) bool {
	o.progress(ctx, t, fmt.Sprintf(msgSearching, query))

	files, err := t.bot.Platform.SearchFiles(ctx, query, 5)
	if err != nil {
		t.log.Warn().Err(err).Str("query", query).Msg("File search failed")
	}
	if len(files) == 0 {
		return o.send(ctx, t, fmt.Sprintf(msgSearchNone, query))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, msgSearchHeader, query)
	for i, f := range files {
		fmt.Fprintf(&sb, "**%d.** `%s`\n     %s (%s)\n\n", i+1, f.Path, f.Name, formatSize(f.Size))
	}
	sb.WriteString(msgSearchFooter)
	return o.send(ctx, t, sb.String())
}

func (o *Orchestrator) handleFind(ctx context.Context, t *turn, query string) bool {
	o.progress(ctx, t, fmt.Sprintf(msgFinding, query))

	shared, err := o.findAndShare(ctx, t, query)
	if err != nil {
		return o.send(ctx, t, err.Error())
	}
	return o.send(ctx, t, fmt.Sprintf(msgFound, shared))
}

// findAndShare shares query when it is an existing absolute path, else the first search
// hit. It returns what to show as the shared file.
func (o *Orchestrator) findAndShare(ctx context.Context, t *turn, query string) (string, error) {
	platform := t.bot.Platform

	if strings.HasPrefix(query, "/") {
		exists, err := platform.FileExists(ctx, query)
		if err != nil {
			t.log.Warn().Err(err).Str("path", query).Msg("File lookup failed")
		}
		if exists {
			if _, err := platform.ShareFile(ctx, query, t.token, ""); err != nil {
				return "", errors.New(msgShareError)
			}
			return query, nil
		}
	}

	files, err := platform.SearchFiles(ctx, query, 1)
	if err != nil {
		t.log.Warn().Err(err).Str("query", query).Msg("File search failed")
	}
	if len(files) == 0 {
		return "", errors.New(msgNothingFound)
	}
	if _, err := platform.ShareFile(ctx, files[0].Path, t.token, ""); err != nil {
		return "", errors.New(msgShareError)
	}
	return files[0].Name, nil
}

func (o *Orchestrator) handlePreview(ctx context.Context, t *turn, filePath string) bool {
	name := path.Base(filePath)
	html := media.IsHTML(name)

	if isLocalPath(filePath) {
		if _, err := os.Stat(filePath); err != nil {
			return o.send(ctx, t, fmt.Sprintf(msgFileNotFound, filePath))
		}
		if html {
			o.progress(ctx, t, fmt.Sprintf(msgHTMLSharing, name))
			_, shared, err := o.uploadAndShare(ctx, t, filePath, previewUploadDir+"/"+name)
			if err == nil && !shared {
				err = errors.New(msgShareError)
			}
			return o.sendHTMLPreview(ctx, t, name, err)
		}
		o.progress(ctx, t, fmt.Sprintf(msgPreviewing, name))
		if media.KindOf(name) == "" {
			return o.send(ctx, t, fmt.Sprintf(msgPreviewFailed, msgPreviewFormats))
		}
		return o.sendDocumentPreview(ctx, t, name, filePath)
	}

	filePath = ensureLeadingSlash(filePath)
	if html {
		o.progress(ctx, t, fmt.Sprintf(msgHTMLSharing, name))
		_, err := t.bot.Platform.ShareFile(ctx, filePath, t.token, "")
		return o.sendHTMLPreview(ctx, t, name, err)
	}

	o.progress(ctx, t, fmt.Sprintf(msgPreviewing, name))
	if media.KindOf(name) == "" {
		return o.send(ctx, t, fmt.Sprintf(msgPreviewFailed, msgPreviewFormats))
	}
	local, err := t.bot.Platform.DownloadFile(ctx, t.bot.Platform.FileURL(filePath), o.opts.TempDir)
	if err != nil {
		t.log.Warn().Err(err).Str("path", filePath).Msg("Document download failed")
		return o.send(ctx, t, fmt.Sprintf(msgPreviewFailed, err))
	}
	defer os.Remove(local)
	return o.sendDocumentPreview(ctx, t, name, local)
}

func (o *Orchestrator) sendHTMLPreview(ctx context.Context, t *turn, name string, err error) bool {
	if err != nil {
		t.log.Warn().Err(err).Str("file", name).Msg("HTML preview share failed")
		return o.send(ctx, t, fmt.Sprintf(msgHTMLFailed, err))
	}
	return o.send(ctx, t, fmt.Sprintf(msgHTMLShared, name))
}

func (o *Orchestrator) sendDocumentPreview(ctx context.Context, t *turn, name, localPath string) bool {
	p, err := o.deps.Extractor.ExtractText(ctx, localPath)
	if errors.Is(err, media.ErrUnsupported) {
		return o.send(ctx, t, fmt.Sprintf(msgPreviewFailed, msgPreviewFormats))
	}
	if err != nil {
		t.log.Warn().Err(err).Str("file", name).Msg("Text extraction failed")
		return o.send(ctx, t, fmt.Sprintf(msgPreviewFailed, err))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, msgPreviewHeader, name)
	switch {
	case p.Pages > 0:
		fmt.Fprintf(&sb, msgPreviewPages, p.Pages)
	case p.Paragraphs > 0:
		fmt.Fprintf(&sb, msgPreviewParas, p.Paragraphs)
	}
	sb.WriteString("\n---\n\n")
	sb.WriteString(p.Text)
	return o.send(ctx, t, sb.String())
}

// fetchAudio downloads the attachment and transcribes it within the transcription timeout.
// The downloaded file is always removed.
func (o *Orchestrator) fetchAudio(ctx context.Context, t *turn, att *activity.Attachment) (text string, downloaded bool, err error) {
	local, err := t.bot.Platform.DownloadFile(ctx, att.URL, o.opts.TempDir)
	if err != nil {
		t.log.Warn().Err(err).Str("url", att.URL).Msg("Audio download failed")
		return "", false, err
	}
	defer os.Remove(local)

	tctx, cancel := context.WithTimeout(ctx, o.opts.TranscriptionTimeout)
	defer cancel()
	text, err = o.deps.Transcriber.Transcribe(tctx, local)
	if err != nil {
		t.log.Warn().Err(err).Str("file", att.Name).Msg("Transcription failed")
		return "", true, err
	}
	return text, true, nil
}

func (o *Orchestrator) audioURLs(t *turn) activity.FileURLs {
	return activity.FileURLs{BaseURL: t.bot.Platform.BaseURL(), User: t.bot.Platform.User()}
}

func attachmentName(att *activity.Attachment) string {
	if att.Name != "" {
		return att.Name
	}
	return "audio"
}

func (o *Orchestrator) transcribeTooLong() string {
	return fmt.Sprintf(msgTranscribeTooLong, int(o.opts.TranscriptionTimeout.Minutes()))
}

func (o *Orchestrator) handleTranscribe(ctx context.Context, t *turn) bool {
	att, ok := activity.DetectAudio(t.event, t.msg, o.audioURLs(t))
	if !ok {
		return o.send(ctx, t, msgNoAudio)
	}
	o.progress(ctx, t, fmt.Sprintf(msgTranscribing, attachmentName(att)))

	text, downloaded, err := o.fetchAudio(ctx, t, att)
	var reply string
	switch {
	case !downloaded:
		reply = msgAudioNoDownload
	case errors.Is(err, context.DeadlineExceeded):
		reply = o.transcribeTooLong()
	case err != nil:
		reply = msgAudioNoText
	default:
		reply = fmt.Sprintf(msgTranscript, text)
	}
	return o.sendReply(ctx, t, reply, t.replyTo)
}
