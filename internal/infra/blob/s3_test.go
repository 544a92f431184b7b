package blob

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &s3.PutObjectOutput{}, nil
}

func TestPut(t *testing.T) {
	api := &fakeS3{}
	s := NewS3WithAPI(api, "makerspace", "exports/")

	key, err := s.Put(context.Background(), "inventory_2026-10-16.csv", "text/csv", []byte("Name,Stock\n"))
	require.NoError(t, err)
	assert.Equal(t, "exports/inventory_2026-10-16.csv", key)
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "makerspace", aws.ToString(api.inputs[0].Bucket))
	assert.Equal(t, "text/csv", aws.ToString(api.inputs[0].ContentType))
	assert.Equal(t, "Name,Stock\n", string(api.bodies[0]))
}

func TestPutError(t *testing.T) {
	s := NewS3WithAPI(&fakeS3{err: errors.New("access denied")}, "b", "")
	_, err := s.Put(context.Background(), "x.csv", "text/csv", nil)
	assert.Error(t, err)
}
