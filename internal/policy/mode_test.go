package policy

import "testing"

func TestResolve_SafetyMatrix(t *testing.T) {
	modes := []Mode{ModeDryRun, ModeTest, ModeProd}
	for _, env := range modes {
		for _, requested := range modes {
			d := Resolve(env, requested)
			wantAllowed := requested.Safety() >= env.Safety()
			if d.Allowed != wantAllowed {
				t.Fatalf("env=%s requested=%s: expected allowed=%v, got %v", env, requested, wantAllowed, d.Allowed)
			}
			wantMode := env
			if wantAllowed {
				wantMode = requested
			}
			if d.Mode != wantMode {
				t.Fatalf("env=%s requested=%s: expected mode %s, got %s", env, requested, wantMode, d.Mode)
			}
		}
	}
}

func TestResolve_ProdToDryRunAllowed(t *testing.T) {
	d := Resolve(ModeProd, ModeDryRun)
	if !d.Allowed || d.Mode != ModeDryRun {
		t.Fatalf("expected dryrun override to be allowed, got %+v", d)
	}
	if !d.Overridden(ModeProd) {
		t.Fatal("expected decision to report an override")
	}
}

func TestResolve_DryRunToProdRejected(t *testing.T) {
	d := Resolve(ModeDryRun, ModeProd)
	if d.Allowed {
		t.Fatal("expected prod override to be rejected")
	}
	if d.Mode != ModeDryRun {
		t.Fatalf("expected fallback to dryrun, got %s", d.Mode)
	}
	if d.Reason == "" {
		t.Fatal("expected rejection reason")
	}
}

func TestResolve_SameModeAllowed(t *testing.T) {
	d := Resolve(ModeTest, ModeTest)
	if !d.Allowed || d.Mode != ModeTest {
		t.Fatalf("expected same-level override to be allowed, got %+v", d)
	}
	if d.Overridden(ModeTest) {
		t.Fatal("same mode should not count as override")
	}
}

func TestResolve_EmptyRequestKeepsEnv(t *testing.T) {
	d := Resolve(ModeTest, "")
	if !d.Allowed || d.Mode != ModeTest {
		t.Fatalf("expected env mode, got %+v", d)
	}
}

func TestResolve_UnknownRequestFallsBack(t *testing.T) {
	d := Resolve(ModeTest, "yolo")
	if d.Allowed {
		t.Fatal("expected unknown mode to be rejected")
	}
	if d.Mode != ModeTest {
		t.Fatalf("expected fallback to test, got %s", d.Mode)
	}
}

func TestResolve_NormalizesInput(t *testing.T) {
	d := Resolve(" PROD ", " DryRun ")
	if !d.Allowed || d.Mode != ModeDryRun {
		t.Fatalf("expected normalized dryrun, got %+v", d)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("Test"); err != nil || m != ModeTest {
		t.Fatalf("expected test, got %q err=%v", m, err)
	}
	if _, err := ParseMode("live"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestMode_Submits(t *testing.T) {
	if ModeDryRun.Submits() {
		t.Fatal("dryrun must never submit")
	}
	if !ModeTest.Submits() || !ModeProd.Submits() {
		t.Fatal("test and prod must submit")
	}
}
