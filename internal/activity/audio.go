package activity

import (
	"encoding/json"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// AudioExtensions are the file extensions treated as audio.
var AudioExtensions = []string{".mp3", ".wav", ".ogg", ".m4a", ".flac", ".webm", ".opus"}

var filePattern = regexp.MustCompile(`\{file:(\d+)\|name:([^}]+)\}`)

// Attachment is an audio file referenced by a message.
type Attachment struct {
	URL      string
	Name     string
	MimeType string
}

// FileURLs builds WebDAV download URLs for the bot's Nextcloud account.
type FileURLs struct {
	BaseURL string
	User    string
}

func (f FileURLs) dav(user, p string) string {
	return strings.TrimRight(f.BaseURL, "/") + "/remote.php/dav/files/" + user + "/" + strings.TrimLeft(p, "/")
}

// IsAudioFile reports whether name has an audio extension.
func IsAudioFile(name string) bool {
	if name == "" {
		return false
	}
	ext := strings.ToLower(path.Ext(name))
	for _, a := range AudioExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

type fileParam struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Link     string `json:"link"`
	MimeType string `json:"mimetype"`
}

func (p fileParam) audio() bool {
	return strings.HasPrefix(p.MimeType, "audio/") || IsAudioFile(p.Name)
}

// DetectAudio looks for an audio attachment on the event, trying in order: the voice-message
// type, an audio media type, the "file" message parameter, the other message parameters, a
// {file:ID|name:X} reference in the raw content and finally the object parameters.
func DetectAudio(e *Event, msg Message, urls FileURLs) (*Attachment, bool) {
	obj := e.Object

	switch obj.MessageType {
	case "voice-message", "record-audio":
		name := obj.Name
		if name == "" {
			name = "voice.ogg"
		}
		return &Attachment{URL: string(obj.ID), Name: name}, true
	}

	if strings.HasPrefix(obj.MediaType, "audio/") {
		return &Attachment{URL: string(obj.ID), Name: obj.Name, MimeType: obj.MediaType}, true
	}

	if a, ok := fromMessageParameters(msg.Parameters, urls); ok {
		return a, true
	}

	if m := filePattern.FindStringSubmatch(obj.Content); m != nil && IsAudioFile(m[2]) {
		return &Attachment{URL: urls.dav(urls.User, m[2]), Name: m[2]}, true
	}

	return fromObjectParameters(obj.Parameters, urls)
}

func fromMessageParameters(raw json.RawMessage, urls FileURLs) (*Attachment, bool) {
	params := decodeParams(raw)
	if len(params) == 0 {
		return nil, false
	}

	if fileRaw, ok := params["file"]; ok {
		var f fileParam
		if json.Unmarshal(fileRaw, &f) == nil && f.audio() {
			owner := urls.User
			var actor struct {
				ID string `json:"id"`
			}
			if a, ok := params["actor"]; ok && json.Unmarshal(a, &actor) == nil && actor.ID != "" {
				owner = actor.ID
			}
			u := urls.dav(owner, "Talk/"+url.PathEscape(f.Name))
			return &Attachment{URL: u, Name: f.Name, MimeType: f.MimeType}, true
		}
	}

	for _, key := range sortedKeys(params) {
		if key == "file" || key == "actor" {
			continue
		}
		var f fileParam
		if json.Unmarshal(params[key], &f) != nil {
			continue
		}
		if !f.audio() && f.Type != "voice-message" {
			continue
		}
		switch {
		case f.Path != "":
			return &Attachment{URL: urls.dav(urls.User, f.Path), Name: f.Name, MimeType: f.MimeType}, true
		case f.Link != "":
			return &Attachment{URL: f.Link + "/download", Name: f.Name, MimeType: f.MimeType}, true
		case f.Name != "":
			return &Attachment{URL: urls.dav(urls.User, f.Name), Name: f.Name, MimeType: f.MimeType}, true
		}
	}
	return nil, false
}

func fromObjectParameters(raw json.RawMessage, urls FileURLs) (*Attachment, bool) {
	params := decodeParams(raw)
	for _, key := range sortedKeys(params) {
		var f fileParam
		if json.Unmarshal(params[key], &f) != nil || f.Type != "file" || !IsAudioFile(f.Name) {
			continue
		}
		switch {
		case f.Path != "":
			return &Attachment{URL: urls.dav(urls.User, f.Path), Name: f.Name}, true
		case f.Link != "":
			return &Attachment{URL: f.Link, Name: f.Name}, true
		default:
			return &Attachment{URL: urls.dav(urls.User, f.Name), Name: f.Name}, true
		}
	}
	return nil, false
}

// decodeParams accepts parameters as an object or as a list, which Talk sends when empty.
func decodeParams(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) == nil {
		return m
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) != nil {
		return nil
	}
	m = make(map[string]json.RawMessage, len(list))
	for i, v := range list {
		m[strconv.Itoa(i)] = v
	}
	return m
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
