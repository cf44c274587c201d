package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/spigell/matchmaker/internal/matchmaking"
)

func testSummary() *matchmaking.Summary {
	started := time.Date(2026, time.March, 15, 1, 0, 0, 0, time.UTC)
	return &matchmaking.Summary{
		RunID:      "run-42",
		Mode:       matchmaking.ModeFull,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Committed:  1,
		Pairs:      []matchmaking.PairSummary{{Users: [2]string{"a", "b"}, Rating: 9}},
	}
}

func TestDirWritesSummary(t *testing.T) {
	root := t.TempDir()
	dir := NewDir(root)
	summary := testSummary()

	if want := filepath.Join(root, "run-run-42.json"); dir.Path(summary) != want {
		t.Fatalf("expected path %s, got %s", want, dir.Path(summary))
	}

	if err := dir.Report(context.Background(), summary); err != nil {
		t.Fatalf("report: %v", err)
	}

	data, err := os.ReadFile(dir.Path(summary))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var got matchmaking.Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got.RunID != "run-42" || got.Committed != 1 || len(got.Pairs) != 1 {
		t.Fatalf("unexpected report: %+v", got)
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3UploadsSummary(t *testing.T) {
	putter := &fakePutter{}
	sink := NewS3(putter, "reports", "matchmaker/runs")

	if err := sink.Report(context.Background(), testSummary()); err != nil {
		t.Fatalf("report: %v", err)
	}

	if aws.ToString(putter.input.Bucket) != "reports" {
		t.Fatalf("unexpected bucket %q", aws.ToString(putter.input.Bucket))
	}
	if key := aws.ToString(putter.input.Key); key != "matchmaker/runs/run-run-42.json" {
		t.Fatalf("unexpected key %q", key)
	}

	var got matchmaking.Summary
	if err := json.Unmarshal(putter.body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.RunID != "run-42" {
		t.Fatalf("unexpected run id %q", got.RunID)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	failing := NewS3(&fakePutter{err: errors.New("denied")}, "reports", "")
	dir := NewDir(t.TempDir())
	summary := testSummary()

	err := Multi{failing, dir}.Report(context.Background(), summary)
	if err == nil {
		t.Fatalf("expected error from failing sink")
	}

	if _, statErr := os.Stat(dir.Path(summary)); statErr != nil {
		t.Fatalf("expected the file sink to run after a failure: %v", statErr)
	}
}
