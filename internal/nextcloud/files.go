package nextcloud

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultUploadDir is where uploads without an explicit target end up.
const DefaultUploadDir = "/Bot-Uploads"

const shareTypeTalk = 10

// File is one search hit in the bot's file tree.
type File struct {
	Path        string
	Name        string
	Size        int64
	ContentType string
}

// ShareResult describes a successful share.
type ShareResult struct {
	Path          string
	AlreadyShared bool
}

// ShareFile shares a file from the bot's tree into a Talk conversation. A file that is
// already shared there counts as success.
func (c *Client) ShareFile(ctx context.Context, filePath, token, caption string) (*ShareResult, error) {
	form := url.Values{}
	form.Set("shareType", strconv.Itoa(shareTypeTalk))
	form.Set("shareWith", token)
	form.Set("path", filePath)
	if caption != "" {
		meta, err := json.Marshal(map[string]string{"caption": caption})
		if err != nil {
			return nil, err
		}
		form.Set("talkMetaData", string(meta))
	}

	resp, err := c.do(ctx, call{
		op:          "share_file",
		method:      http.MethodPost,
		url:         c.baseURL + "/ocs/v2.php/apps/files_sharing/api/v1/shares",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		headers:     ocsHeaders,
		basicAuth:   true,
		accept:      []int{http.StatusOK, http.StatusCreated},
	})
	if err != nil {
		if resp != nil && resp.status == http.StatusForbidden && strings.Contains(strings.ToLower(string(resp.body)), "al gedeeld") {
			log.Debug().Str("path", filePath).Str("token", token).Msg("File already shared")
			return &ShareResult{Path: filePath, AlreadyShared: true}, nil
		}
		return nil, err
	}
	return &ShareResult{Path: filePath}, nil
}

// MakeFolder creates folderPath and its parents. Existing folders are fine; other refusals
// are logged and skipped so the following upload reports the real problem.
func (c *Client) MakeFolder(ctx context.Context, folderPath string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(folderPath, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		resp, err := c.do(ctx, call{
			op:        "make_folder",
			method:    "MKCOL",
			url:       c.davURL(current),
			basicAuth: true,
			accept:    []int{http.StatusCreated, http.StatusMethodNotAllowed},
		})
		if err != nil {
			if resp == nil {
				return err
			}
			log.Warn().Str("path", current).Int("status", resp.status).Msg("Could not create folder")
		}
	}
	return nil
}

// Upload describes a file stored in the bot's tree.
type Upload struct {
	RemotePath string
	Name       string
	Size       int64
}

// UploadFile stores a local file at remotePath, or under DefaultUploadDir when remotePath
// is empty, creating parent folders as needed.
func (c *Client) UploadFile(ctx context.Context, localPath, remotePath string) (*Upload, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	name := filepath.Base(localPath)
	if remotePath == "" {
		remotePath = DefaultUploadDir + "/" + name
	} else if !strings.HasPrefix(remotePath, "/") {
		remotePath = "/" + remotePath
	}

	if dir := path.Dir(remotePath); dir != "/" && dir != "." {
		if err := c.MakeFolder(ctx, dir); err != nil {
			return nil, err
		}
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = c.do(ctx, call{
		op:          "upload_file",
		method:      http.MethodPut,
		url:         c.davURL(remotePath),
		body:        data,
		contentType: contentType,
		basicAuth:   true,
		accept:      []int{http.StatusOK, http.StatusCreated, http.StatusNoContent},
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("local", localPath).Str("remote", remotePath).Int("bytes", len(data)).Msg("File uploaded")
	return &Upload{RemotePath: remotePath, Name: name, Size: int64(len(data))}, nil
}

// FileExists reports whether filePath exists in the bot's tree.
func (c *Client) FileExists(ctx context.Context, filePath string) (bool, error) {
	resp, err := c.do(ctx, call{
		op:         "file_exists",
		method:     http.MethodHead,
		url:        c.davURL(filePath),
		basicAuth:  true,
		accept:     []int{http.StatusOK},
		idempotent: true,
	})
	if err != nil {
		if resp != nil && resp.status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

const propfindBody = `<?xml version="1.0"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:displayname/>
    <d:getcontentlength/>
    <d:getcontenttype/>
    <d:resourcetype/>
  </d:prop>
</d:propfind>`

type multistatus struct {
	Responses []davResponse `xml:"DAV: response"`
}

type davResponse struct {
	Href      string        `xml:"DAV: href"`
	Propstats []davPropstat `xml:"DAV: propstat"`
}

type davPropstat struct {
	Status string  `xml:"DAV: status"`
	Prop   davProp `xml:"DAV: prop"`
}

type davProp struct {
	DisplayName   string `xml:"DAV: displayname"`
	ContentLength string `xml:"DAV: getcontentlength"`
	ContentType   string `xml:"DAV: getcontenttype"`
	ResourceType  struct {
		Collection *struct{} `xml:"DAV: collection"`
	} `xml:"DAV: resourcetype"`
}

func (r davResponse) prop() davProp {
	for _, ps := range r.Propstats {
		if strings.Contains(ps.Status, " 200 ") {
			return ps.Prop
		}
	}
	if len(r.Propstats) > 0 {
		return r.Propstats[0].Prop
	}
	return davProp{}
}

// SearchFiles walks the bot's whole tree and returns up to limit files whose path contains
// query, case-insensitively. Folders are skipped.
func (c *Client) SearchFiles(ctx context.Context, query string, limit int) ([]File, error) {
	resp, err := c.do(ctx, call{
		op:          "search_files",
		method:      "PROPFIND",
		url:         c.davRoot() + "/",
		body:        []byte(propfindBody),
		contentType: "application/xml",
		headers:     map[string]string{"Depth": "infinity"},
		basicAuth:   true,
		accept:      []int{http.StatusMultiStatus},
		idempotent:  true,
	})
	if err != nil {
		return nil, err
	}

	var ms multistatus
	if err := xml.Unmarshal(resp.body, &ms); err != nil {
		return nil, fmt.Errorf("failed to decode PROPFIND response: %w", err)
	}

	prefix := "/remote.php/dav/files/" + c.user
	needle := strings.ToLower(query)
	var files []File
	for _, r := range ms.Responses {
		href, err := url.PathUnescape(r.Href)
		if err != nil {
			href = r.Href
		}
		idx := strings.Index(href, prefix)
		if idx < 0 {
			continue
		}
		filePath := href[idx+len(prefix):]
		if filePath == "" || !strings.Contains(strings.ToLower(filePath), needle) {
			continue
		}

		prop := r.prop()
		if prop.ResourceType.Collection != nil {
			continue
		}
		f := File{Path: filePath, Name: prop.DisplayName, ContentType: prop.ContentType}
		if f.Name == "" {
			f.Name = path.Base(filePath)
		}
		if f.ContentType == "" {
			f.ContentType = "unknown"
		}
		f.Size, _ = strconv.ParseInt(prop.ContentLength, 10, 64)

		files = append(files, f)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, nil
}

// DownloadFile fetches fileURL into a new temp file in dir and returns its path. Public
// share links (containing /s/) are fetched without credentials. The caller removes the file.
func (c *Client) DownloadFile(ctx context.Context, fileURL, dir string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("download: failed to create request: %w", err)
	}
	if !strings.Contains(fileURL, "/s/") {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Op: "download", StatusCode: resp.StatusCode, Body: string(body)}
	}

	f, err := os.CreateTemp(dir, "talkbot-download-*"+downloadExt(fileURL, resp.Header.Get("Content-Type")))
	if err != nil {
		return "", fmt.Errorf("download: failed to create temp file: %w", err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("download: failed to write file: %w", err)
	}

	log.Debug().Str("url", fileURL).Int64("bytes", n).Str("path", f.Name()).Msg("File downloaded")
	return f.Name(), nil
}

// downloadExt picks the temp file extension from the URL path, then the content type.
// Talk recordings without either are mp3.
func downloadExt(fileURL, contentType string) string {
	p := strings.SplitN(fileURL, "?", 2)[0]
	p = strings.SplitN(p, "/download", 2)[0]
	if ext := path.Ext(path.Base(p)); ext != "" && !strings.ContainsAny(ext, ":/") {
		return ext
	}
	switch {
	case strings.Contains(contentType, "audio/mpeg"), strings.Contains(contentType, "audio/mp3"):
		return ".mp3"
	case strings.Contains(contentType, "audio/ogg"):
		return ".ogg"
	case strings.Contains(contentType, "audio/wav"):
		return ".wav"
	}
	return ".mp3"
}
