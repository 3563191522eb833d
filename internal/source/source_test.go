package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/dom/htmldom"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/registry"
	"github.com/vango-dev/vrender/pkg/renderer"
)

const counterScenario = `
name: counter
steps:
  - mutations:
      - {op: PushRoot, id: 0}
      - {op: CreateElement, tag: button, id: 1}
      - {op: SetAttribute, name: class, value: btn, id: 1}
      - {op: SetAttribute, name: disabled, value: false, id: 1}
      - {op: CreateTextNode, text: "0", id: 2}
      - {op: AppendChildren, n: 1}
      - {op: AppendChildren, n: 1}
      - {op: NewEventListener, name: click, id: 1}
    fire:
      - {type: click, target: 2, fields: {clientX: 4, clientY: 8}}
  - seq: 9
    mutations:
      - {op: SetText, text: "1", id: 2}
`

func TestReadScenario(t *testing.T) {
	sc, err := ReadScenario(strings.NewReader(counterScenario))
	if err != nil {
		t.Fatalf("ReadScenario: %v", err)
	}
	batches, err := sc.Batches()
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 2 || batches[0].Seq != 1 || batches[1].Seq != 9 {
		t.Fatalf("batches = %+v", batches)
	}

	m := batches[0].Mutations[3]
	if m.Op != protocol.OpSetAttribute || m.Value.Kind != protocol.ValueBool || m.Value.Bool {
		t.Errorf("disabled mutation = %+v", m)
	}
	if got := batches[1].Mutations[0]; got.Op != protocol.OpSetText || got.Text != "1" {
		t.Errorf("SetText mutation = %+v", got)
	}
}

func TestReadScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"unknown op", "steps:\n  - mutations:\n      - {op: Explode, id: 1}\n", protocol.ErrUnknownOp},
		{"bad value", "steps:\n  - mutations:\n      - {op: SetAttribute, name: a, value: [1], id: 1}\n", protocol.ErrInvalidValueKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadScenario(strings.NewReader(tt.text))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := ReadScenario(strings.NewReader("steps:\n  - mutation: []\n")); err == nil {
		t.Error("unknown field should be rejected")
	}
}

func TestFrameLogRoundTrip(t *testing.T) {
	sc, err := ReadScenario(strings.NewReader(counterScenario))
	if err != nil {
		t.Fatal(err)
	}
	batches, _ := sc.Batches()

	// Pad the second batch so it crosses the compression threshold.
	for i := 0; i < 100; i++ {
		batches[1].Mutations = append(batches[1].Mutations,
			protocol.NewSetAttribute("data-pad", protocol.Text("xxxxxxxxxxxxxxxx"), 1, ""))
	}

	var buf bytes.Buffer
	if err := WriteLog(&buf, batches, true); err != nil {
		t.Fatalf("WriteLog: %v", err)
	}
	// Bytes after the final frame are ignored.
	buf.WriteString("trailing")

	src := NewLogReader(io.NopCloser(&buf))
	steps, err := ReadAll(context.Background(), src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("read %d steps", len(steps))
	}
	if got := len(steps[1].Batch.Mutations); got != 101 {
		t.Errorf("second batch has %d mutations", got)
	}
	if steps[0].Fire != nil {
		t.Error("frame logs carry no native events")
	}
}

func TestFrameLogTruncated(t *testing.T) {
	var buf bytes.Buffer
	b := &protocol.Batch{Seq: 1, Mutations: []protocol.Mutation{protocol.NewCreatePlaceholder(1)}}
	if err := WriteLog(&buf, []*protocol.Batch{b}, false); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()[:buf.Len()-1]

	_, err := NewLogReader(io.NopCloser(bytes.NewReader(data))).Next(context.Background())
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want unexpected EOF", err)
	}
}

func TestOpenFiles(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "counter.yaml")
	if err := os.WriteFile(yamlPath, []byte(counterScenario), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(context.Background(), "file://"+yamlPath)
	if err != nil {
		t.Fatalf("Open yaml: %v", err)
	}
	steps, err := ReadAll(context.Background(), src)
	if err != nil || len(steps) != 2 || len(steps[0].Fire) != 1 {
		t.Fatalf("steps = %v, err = %v", steps, err)
	}

	logPath := filepath.Join(dir, "counter.vrl")
	f, err := os.Create(logPath)
	if err != nil {
		t.Fatal(err)
	}
	batches := []*protocol.Batch{steps[0].Batch, steps[1].Batch}
	if err := WriteLog(f, batches, false); err != nil {
		t.Fatal(err)
	}
	f.Close()

	src, err = Open(context.Background(), logPath)
	if err != nil {
		t.Fatalf("Open log: %v", err)
	}
	defer src.Close()
	steps, err = ReadAll(context.Background(), src)
	if err != nil || len(steps) != 2 {
		t.Fatalf("log steps = %d, err = %v", len(steps), err)
	}

	for _, uri := range []string{filepath.Join(dir, "missing.vrl"), "http://example.com/x.vrl", "s3://bucket-only"} {
		if _, err := Open(context.Background(), uri); rerrors.CodeOf(err) != "R041" {
			t.Errorf("Open(%q) = %v, want R041", uri, err)
		}
	}
}

type fakeS3 struct {
	objects map[string][]byte
	asked   []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.asked = append(f.asked, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestOpenS3(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"recordings/app/counter.yml": []byte(counterScenario),
	}}
	opt := WithS3(S3Options{Client: fake})

	src, err := Open(context.Background(), "s3://recordings/app/counter.yml", opt)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	steps, err := ReadAll(context.Background(), src)
	if err != nil || len(steps) != 2 {
		t.Fatalf("steps = %d, err = %v", len(steps), err)
	}

	if _, err := Open(context.Background(), "s3://recordings/none.vrl", opt); rerrors.CodeOf(err) != "R041" {
		t.Errorf("missing object = %v, want R041", err)
	}
	if len(fake.asked) != 2 || fake.asked[1] != "recordings/none.vrl" {
		t.Errorf("asked = %v", fake.asked)
	}
}

func TestNewS3ClientOptions(t *testing.T) {
	c := NewS3Client(S3Options{Region: "eu-west-1", Endpoint: "http://localhost:9000", PathStyle: true})
	o := c.Options()
	if o.Region != "eu-west-1" || !o.UsePathStyle || aws.ToString(o.BaseEndpoint) != "http://localhost:9000" {
		t.Errorf("options = region %q, path style %v, endpoint %q", o.Region, o.UsePathStyle, aws.ToString(o.BaseEndpoint))
	}
}

func TestReplayFiresScriptedEvents(t *testing.T) {
	doc := htmldom.New()
	r, err := renderer.New(doc)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)
	defer r.Close()

	sc, err := ReadScenario(strings.NewReader(counterScenario))
	if err != nil {
		t.Fatal(err)
	}
	rep, err := Replay(ctx, r, doc, sc.Source(), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if rep.Batches != 2 || rep.Skipped != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Events) != 1 || rep.Events[0].Target != 1 || rep.Events[0].Name != "click" {
		t.Fatalf("events = %+v", rep.Events)
	}
	if md, ok := rep.Events[0].Payload.(*protocol.MouseData); !ok || md.ClientX != 4 || md.ClientY != 8 {
		t.Errorf("payload = %#v", rep.Events[0].Payload)
	}

	var html string
	r.View(ctx, func(_ dom.Document, _ *registry.Registry) error {
		html = htmldom.InnerHTML(doc.Body())
		return nil
	})
	if html != `<button class="btn">1</button>` {
		t.Errorf("body = %s", html)
	}
}

func TestReplayStopsAtViolation(t *testing.T) {
	doc := htmldom.New()
	r, err := renderer.New(doc)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)
	defer r.Close()

	src := (&Scenario{Steps: []ScenarioStep{
		{Mutations: []ScenarioOp{{Op: "Remove", ID: 5}}},
		{Mutations: []ScenarioOp{{Op: "CreatePlaceholder", ID: 1}}},
	}}).Source()

	rep, err := Replay(ctx, r, doc, src, nil)
	if !rerrors.IsProtocolViolation(err) {
		t.Fatalf("Replay = %v, want protocol violation", err)
	}
	if rep.Batches != 1 {
		t.Errorf("applied %d batches after a violation", rep.Batches)
	}
}
