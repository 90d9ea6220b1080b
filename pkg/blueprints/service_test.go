package blueprints

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPresigner struct {
	lastPutInput *s3.PutObjectInput
	lastGetInput *s3.GetObjectInput
	err          error
}

func (s *stubPresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastPutInput = in
	return &v4.PresignedHTTPRequest{
		URL:    "https://s3.test/" + aws.ToString(in.Key) + "?signed",
		Method: "PUT",
	}, nil
}

func (s *stubPresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastGetInput = in
	return &v4.PresignedHTTPRequest{
		URL:    "https://s3.test/" + aws.ToString(in.Key) + "?signed",
		Method: "GET",
	}, nil
}

func testService(stub *stubPresigner) *Service {
	return &Service{
		presign: stub,
		bucket:  "blueline-blueprints",
		newID:   func() string { return "00000000-0000-0000-0000-000000000001" },
		now:     func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestCreateUpload(t *testing.T) {
	stub := &stubPresigner{}
	svc := testService(stub)

	upload, err := svc.CreateUpload(context.Background(), UploadRequest{
		FileName:    "floorplan.pdf",
		ContentType: "application/pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "blueprints/00000000-0000-0000-0000-000000000001.pdf", upload.Key)
	assert.Equal(t, "PUT", upload.Method)
	assert.Contains(t, upload.URL, upload.Key)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 15, 0, 0, time.UTC), upload.ExpiresAt)

	require.NotNil(t, stub.lastPutInput)
	assert.Equal(t, "blueline-blueprints", aws.ToString(stub.lastPutInput.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(stub.lastPutInput.ContentType))
}

func TestCreateUploadContentTypes(t *testing.T) {
	tests := []struct {
		contentType string
		wantExt     string
		wantErr     bool
	}{
		{"image/png", ".png", false},
		{"image/jpeg", ".jpg", false},
		{"IMAGE/PNG", ".png", false},
		{"application/pdf", ".pdf", false},
		{"text/html", "", true},
		{"application/octet-stream", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			svc := testService(&stubPresigner{})

			upload, err := svc.CreateUpload(context.Background(), UploadRequest{ContentType: tt.contentType})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedContentType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "blueprints/00000000-0000-0000-0000-000000000001"+tt.wantExt, upload.Key)
		})
	}
}

func TestDownloadURL(t *testing.T) {
	stub := &stubPresigner{}
	svc := testService(stub)

	url, err := svc.DownloadURL(context.Background(), "blueprints/abc.png")
	require.NoError(t, err)
	assert.Contains(t, url, "blueprints/abc.png")
	assert.Equal(t, "blueline-blueprints", aws.ToString(stub.lastGetInput.Bucket))
}

func TestDownloadURLRejectsForeignKeys(t *testing.T) {
	svc := testService(&stubPresigner{})

	_, err := svc.DownloadURL(context.Background(), "../etc/passwd")
	assert.Error(t, err)

	_, err = svc.DownloadURL(context.Background(), "other-prefix/abc.png")
	assert.Error(t, err)
}

func TestCreateUploadPresignFailure(t *testing.T) {
	svc := testService(&stubPresigner{err: assert.AnError})

	_, err := svc.CreateUpload(context.Background(), UploadRequest{ContentType: "image/png"})
	assert.Error(t, err)
}
