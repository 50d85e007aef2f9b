package testutil

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// MultipartBody encodes form fields and an optional file part. A nil content skips the file.
func MultipartBody(t testing.TB, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		require.NoError(t, writer.WriteField(key, fields[key]))
	}

	if content != nil {
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="` + fileField + `"; filename="` + filename + `"`},
			"Content-Type":        {"application/octet-stream"},
		})
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

// FileHeader builds the multipart header a handler would receive for an uploaded file.
func FileHeader(t testing.TB, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body, contentType := MultipartBody(t, nil, "template", filename, content)
	_, params, found := bytes.Cut([]byte(contentType), []byte("boundary="))
	require.True(t, found)

	reader := multipart.NewReader(body, string(params))
	form, err := reader.ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	files := form.File["template"]
	require.Len(t, files, 1)
	return files[0]
}
