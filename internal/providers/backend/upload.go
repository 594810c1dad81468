package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"parallelmind/internal/domain"
	"parallelmind/internal/ports"
)

const uploadPath = "/api/upload"

// Upload sends the recording as the multipart field "file". Progress is
// reported from the bytes the transport has actually read from the body.
func (c *Client) Upload(ctx context.Context, audio domain.FinalizedAudio, progress ports.ProgressFunc) (domain.UploadResult, error) {
	const op = "backend.Upload"

	body, contentType, err := multipartBody(audio)
	if err != nil {
		return domain.UploadResult{}, domain.E(domain.KindTransport, op, "encode upload", err)
	}

	reader := newCountingReader(body, progress)
	var resp wireUpload
	err = c.do(ctx, op, request{
		method:      http.MethodPost,
		path:        uploadPath,
		body:        reader,
		length:      int64(len(body)),
		contentType: contentType,
		long:        true,
	}, &resp)
	if err != nil {
		return domain.UploadResult{}, err
	}

	status, err := parseStatus(resp.Status)
	if err != nil {
		return domain.UploadResult{}, domain.E(domain.KindTransport, op, "invalid upload response", err)
	}
	if resp.ConversationID == "" {
		return domain.UploadResult{}, domain.E(domain.KindTransport, op, "upload response has no conversation id", nil)
	}

	c.log.WithFields(logrus.Fields{
		"conversation": resp.ConversationID,
		"bytes":        audio.Size(),
	}).Info("recording uploaded")
	return domain.UploadResult{
		ConversationID: domain.ConversationID(resp.ConversationID),
		Status:         status,
		Message:        resp.Message,
	}, nil
}

func multipartBody(audio domain.FinalizedAudio) ([]byte, string, error) {
	mediaType := audio.MediaType
	if mediaType == "" {
		mediaType = domain.MediaTypeWAV
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.wav"`, uuid.NewString()))
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// countingReader reports cumulative bytes read to a progress callback.
type countingReader struct {
	r        io.Reader
	total    int64
	progress ports.ProgressFunc

	mu   sync.Mutex
	sent int64
}

func newCountingReader(body []byte, progress ports.ProgressFunc) *countingReader {
	return &countingReader{r: bytes.NewReader(body), total: int64(len(body)), progress: progress}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.progress != nil {
		c.mu.Lock()
		c.sent += int64(n)
		sent := c.sent
		c.mu.Unlock()
		c.progress(sent, c.total)
	}
	return n, err
}
