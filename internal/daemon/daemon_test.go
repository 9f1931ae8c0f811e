package daemon_test

import (
	"context"
	"testing"
	"time"

	"autocoder/internal/coder"
	"autocoder/internal/daemon"
	"autocoder/internal/jobs"
	"autocoder/internal/logging"
	"autocoder/internal/store"
	"autocoder/internal/testsupport"
)

const unitDefXML = `<Unit>
  <Metadata><Id>U1</Id></Metadata>
  <CodingSchemeRef>SCHEME_1</CodingSchemeRef>
  <BaseVariables>
    <Variable id="var1" type="string"/>
  </BaseVariables>
</Unit>`

const anyValueScheme = `{"variableCodings":[
  {"id":"var1","sourceType":"BASE","codes":[
    {"id":1,"score":1,"rules":[{"method":"MATCH_REGEX","parameters":["\\S"]}]}
  ]}
]}`

func TestDaemonProcessesEnqueuedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFastWorkflow())
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	responses := d.Responses()
	testsupport.SeedPerson(t, responses, 1, "P1", "sample")
	unitID := testsupport.SeedUnit(t, responses, "P1", "U1", "ALIAS_1")
	if err := responses.UpsertTestFile(ctx, 1, "ALIAS_1", unitDefXML); err != nil {
		t.Fatalf("seed test file: %v", err)
	}
	if err := responses.UpsertScheme(ctx, "SCHEME_1", anyValueScheme); err != nil {
		t.Fatalf("seed scheme: %v", err)
	}
	responseID := testsupport.SeedResponse(t, responses, store.Response{
		UnitID:     unitID,
		VariableID: "var1",
		Value:      "x",
		Status:     coder.StatusCodingIncomplete,
	})

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	job, err := d.Jobs().Enqueue(ctx, jobs.BatchSpec{
		WorkspaceID: 1,
		PersonIDs:   []string{"P1"},
		Run:         1,
	}, 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for {
		current, err := d.Jobs().GetJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if current.State == jobs.StateCompleted {
			break
		}
		if current.State == jobs.StateFailed {
			t.Fatalf("job failed: %s", current.ErrorMessage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in state %s", current.State)
		}
		time.Sleep(25 * time.Millisecond)
	}

	persisted, err := responses.GetResponse(ctx, responseID)
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if persisted.V1.Status == nil || *persisted.V1.Status != coder.StatusCodingComplete {
		t.Errorf("v1 status = %v, want CODING_COMPLETE", persisted.V1.Status)
	}
}

func TestSecondInstanceRefusesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFastWorkflow())
	first, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	second, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("second instance should fail to acquire the lock")
	}
}
