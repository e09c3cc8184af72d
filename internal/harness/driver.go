package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/wheelwright/internal/cache"
	"github.com/roach88/wheelwright/internal/config"
	"github.com/roach88/wheelwright/internal/docker"
	"github.com/roach88/wheelwright/internal/inspect"
	"github.com/roach88/wheelwright/internal/journal"
	"github.com/roach88/wheelwright/internal/policy"
	"github.com/roach88/wheelwright/internal/wheel"
)

// Container mount points. Both environments see the same io directory;
// the tool checkout is mounted only when configured.
const (
	ioMount   = "/io"
	toolMount = "/auditwheel_src"
)

// Options wires a Driver. Config, Registry, Manager, Cache, and Journal
// are required; Clock, Tokens, and Logger default to production values.
type Options struct {
	Config   *config.Config
	Registry *policy.Registry
	Manager  *docker.Manager
	Cache    *cache.Cache
	Journal  *journal.Journal
	Clock    Clock
	Tokens   TokenSource
	Logger   *slog.Logger
}

// Driver executes scenario runs.
type Driver struct {
	cfg     *config.Config
	reg     *policy.Registry
	manager *docker.Manager
	cache   *cache.Cache
	journal *journal.Journal
	clock   Clock
	tokens  TokenSource
	logger  *slog.Logger
}

// New builds a Driver from opts.
func New(opts Options) *Driver {
	d := &Driver{
		cfg:     opts.Config,
		reg:     opts.Registry,
		manager: opts.Manager,
		cache:   opts.Cache,
		journal: opts.Journal,
		clock:   opts.Clock,
		tokens:  opts.Tokens,
		logger:  opts.Logger,
	}
	if d.clock == nil {
		d.clock = SystemClock{}
	}
	if d.tokens == nil {
		d.tokens = UUIDTokens{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// run carries one run's mutable state through the stages.
type run struct {
	d   *Driver
	sc  Scenario
	pol policy.Policy

	id    string
	ioDir string
	state string

	// artifact is the wheel later stages act on: the repaired wheel, or
	// the original when the repair adds no files.
	artifact string

	cmdSeq   int64
	checkSeq int64
	commands []journal.CommandRecord
	checks   []journal.CheckRecord
	detail   journal.Detail

	producer *docker.Environment
	consumer *docker.Environment
}

// Run executes one scenario against one policy. Test failures come back
// inside the Result with Pass false; the error return is reserved for the
// harness itself failing before a run could be recorded.
func (d *Driver) Run(ctx context.Context, scenarioName, policyName string) (*Result, error) {
	sc, err := Lookup(d.cfg.PythonABI, scenarioName)
	if err != nil {
		return nil, err
	}
	pol, err := d.reg.Lookup(policyName)
	if err != nil {
		return nil, err
	}

	ioDir, err := os.MkdirTemp("", "wheelwright-io-")
	if err != nil {
		return nil, fmt.Errorf("create io dir: %w", err)
	}

	r := &run{
		d:      d,
		sc:     sc,
		pol:    pol,
		id:     d.tokens.Next(),
		ioDir:  ioDir,
		state:  StateBuilding,
		detail: journal.Detail{},
	}
	started := d.clock.Now()

	defer func() {
		// Teardown must still reach the daemon after a SIGINT has
		// cancelled ctx, or the containers leak.
		teardown := context.WithoutCancel(ctx)
		d.manager.Release(teardown, r.consumer)
		d.manager.Release(teardown, r.producer)
		if d.cfg.KeepEnvironments {
			d.logger.Info("keeping io dir", "run", r.id, "dir", ioDir)
			return
		}
		if err := os.RemoveAll(ioDir); err != nil {
			d.logger.Warn("failed to remove io dir", "dir", ioDir, "error", err)
		}
	}()

	if err := d.journal.CreateRun(ctx, journal.Run{
		ID:        r.id,
		Scenario:  sc.Name,
		Policy:    pol.Name,
		State:     r.state,
		StartedAt: started,
	}); err != nil {
		return nil, err
	}
	d.logger.Info("run started", "run", r.id, "scenario", sc.Name, "policy", pol.Name)

	runErr := d.execute(ctx, r)

	finished := d.clock.Now()
	pass := runErr == nil
	failure := ""
	if runErr != nil {
		failure = runErr.Error()
		d.logger.Error("run failed", "run", r.id, "state", r.state, "error", runErr)
	} else {
		d.logger.Info("run passed", "run", r.id, "duration", finished.Sub(started))
	}
	// The terminal record must land even when the run died to a
	// cancelled ctx.
	if err := d.journal.FinishRun(context.WithoutCancel(ctx), r.id, r.state, pass, finished, failure, r.detail); err != nil {
		return nil, err
	}

	return &Result{
		RunID:    r.id,
		Scenario: sc.Name,
		Policy:   pol.Name,
		State:    r.state,
		Pass:     pass,
		Failure:  failure,
		Started:  started,
		Finished: finished,
		Commands: r.commands,
		Checks:   r.checks,
		Detail:   r.detail,
	}, nil
}

func (d *Driver) execute(ctx context.Context, r *run) error {
	if err := d.provisionProducer(ctx, r); err != nil {
		return err
	}
	if err := d.build(ctx, r); err != nil {
		return err
	}
	if err := d.repair(ctx, r); err != nil {
		return err
	}
	if err := d.inspectRepaired(ctx, r); err != nil {
		return err
	}
	if len(r.sc.Verify) > 0 {
		if err := d.install(ctx, r); err != nil {
			return err
		}
		if err := d.verify(ctx, r); err != nil {
			return err
		}
	}
	return r.advance(ctx, StateDone)
}

// provisionProducer starts the policy's build environment and readies it:
// a current pip, then the tool under test from its mounted checkout.
func (d *Driver) provisionProducer(ctx context.Context, r *run) error {
	overlay, err := d.reg.EnvOverlayFor(r.pol.Name)
	if err != nil {
		return err
	}
	image, err := d.reg.ImageFor(r.pol.Name)
	if err != nil {
		return err
	}
	producer, err := d.manager.Acquire(ctx, docker.StartSpec{
		Name:   containerName("producer", r.id),
		Image:  image,
		Mounts: d.mounts(r),
		Env:    overlay,
	})
	if err != nil {
		return err
	}
	r.producer = producer

	bootstrap := []docker.Command{
		{Argv: []string{"pip", "install", "-U", "pip", "setuptools"}},
	}
	if d.cfg.Tool.Source != "" {
		bootstrap = append(bootstrap, docker.Command{Argv: []string{"pip", "install", "-U", toolMount}})
	}
	for _, cmd := range bootstrap {
		if _, err := r.exec(ctx, producer, cmd, false); err != nil {
			return err
		}
	}
	return nil
}

// build produces the original wheel in /io, from the cache when the
// scenario allows it, and asserts the io directory holds exactly that
// wheel with no policy tag on it.
func (d *Driver) build(ctx context.Context, r *run) error {
	if len(r.sc.YumPackages) > 0 {
		argv := append([]string{"yum", "install", "-y"}, r.sc.YumPackages...)
		if _, err := r.exec(ctx, r.producer, docker.Command{Argv: argv}, false); err != nil {
			return err
		}
	}

	restored := false
	if r.sc.Cacheable {
		hit, err := d.cache.Restore(r.pol.Name, r.sc.OriginalWheel, r.ioDir)
		if err != nil {
			return err
		}
		restored = hit
		if hit {
			r.detail["cache"] = "hit"
			d.logger.Info("restored build from cache", "run", r.id, "wheel", r.sc.OriginalWheel)
		} else {
			r.detail["cache"] = "miss"
		}
	}
	if !restored {
		for _, cmd := range r.sc.Build {
			if _, err := r.exec(ctx, r.producer, cmd, false); err != nil {
				return err
			}
		}
		if r.sc.Cacheable {
			if err := d.cache.Store(r.pol.Name, filepath.Join(r.ioDir, r.sc.OriginalWheel)); err != nil {
				return err
			}
		}
	}

	files, err := r.listIO()
	if err != nil {
		return err
	}
	want := r.sc.OriginalWheel
	r.detail["original"] = want
	ok := len(files) == 1 && files[0] == want
	if err := r.check(ctx, "build produced the original wheel", ok,
		want, strings.Join(files, ", ")); err != nil {
		return err
	}

	name, err := wheel.ParseName(want)
	if err != nil {
		return err
	}
	tagged := ""
	for _, p := range d.reg.All() {
		if name.Tagged(p.Name) {
			tagged = p.Name
		}
	}
	if err := r.check(ctx, "original wheel carries no policy tag", tagged == "",
		"platform tag "+name.PlatformTag, "tagged with "+tagged); err != nil {
		return err
	}

	return r.advance(ctx, StateBuilt)
}

// repair runs the cross-policy matrix when the scenario opts in, then the
// repair targeting the producer's own policy.
func (d *Driver) repair(ctx context.Context, r *run) error {
	if err := r.advance(ctx, StateRepairing); err != nil {
		return err
	}

	if r.sc.RejectionMatrix {
		older, err := d.reg.OlderThan(r.pol.Name)
		if err != nil {
			return err
		}
		for _, target := range older {
			cmd := repairCommand(d.cfg.Tool.Command, r.sc, target.PlatformTag(), r.sc.OriginalWheel)
			_, execErr := r.exec(ctx, r.producer, cmd, true)
			var cmdErr *docker.CommandError
			switch {
			case errors.As(execErr, &cmdErr):
				// The refusal the matrix is after.
				if err := r.advance(ctx, StateRejected); err != nil {
					return err
				}
				name := "repair to older policy " + target.Name + " refused"
				if err := r.check(ctx, name, true,
					"non-zero exit for --plat "+target.PlatformTag(), ""); err != nil {
					return err
				}
				if err := r.advance(ctx, StateRepairing); err != nil {
					return err
				}
			case execErr != nil:
				return execErr
			default:
				return r.check(ctx, "repair to older policy "+target.Name+" refused", false,
					"non-zero exit for --plat "+target.PlatformTag(), "exit status 0")
			}
		}
	}

	cmd := repairCommand(d.cfg.Tool.Command, r.sc, r.pol.PlatformTag(), r.sc.OriginalWheel)
	if _, err := r.exec(ctx, r.producer, cmd, false); err != nil {
		return err
	}
	return r.advance(ctx, StateRepaired)
}

// inspectRepaired asserts the post-repair file set, checks the tool's own
// view of the artifacts via show, and runs the host-side ELF checks for
// scenarios that opt in.
func (d *Driver) inspectRepaired(ctx context.Context, r *run) error {
	if err := r.advance(ctx, StateInspecting); err != nil {
		return err
	}

	files, err := r.listIO()
	if err != nil {
		return err
	}

	orig, err := wheel.ParseName(r.sc.OriginalWheel)
	if err != nil {
		return err
	}
	expected := orig.WithPlatform(r.pol.PlatformTag()).Filename()

	if r.sc.AddsNoFiles {
		expected = r.sc.OriginalWheel
		ok := len(files) == 1 && files[0] == r.sc.OriginalWheel
		if err := r.check(ctx, "repair adds no files", ok,
			r.sc.OriginalWheel, strings.Join(files, ", ")); err != nil {
			return err
		}
	} else {
		repaired := taggedWith(files, r.pol.Name)
		if r.sc.AllowExtraWheels {
			ok := slices.Contains(repaired, expected)
			if err := r.check(ctx, "repair produced the policy-tagged wheel", ok,
				expected, strings.Join(files, ", ")); err != nil {
				return err
			}
		} else {
			ok := len(files) == 2 && len(repaired) == 1 && repaired[0] == expected
			if err := r.check(ctx, "repair added exactly the policy-tagged wheel", ok,
				expected+" next to the original", strings.Join(files, ", ")); err != nil {
				return err
			}
		}
	}
	r.artifact = expected
	r.detail["repaired"] = expected

	tag := r.pol.PlatformTag()
	if r.sc.ShowOldestTag {
		tag = d.reg.Oldest().PlatformTag()
	}
	out, err := r.exec(ctx, r.producer, showCommand(d.cfg.Tool.Command, expected), false)
	if err != nil {
		return err
	}
	sentence := fmt.Sprintf("%s is consistent with the following platform tag: %q", expected, tag)
	if err := r.check(ctx, "show reports the expected platform tag",
		outputContains(string(out), sentence), sentence, flatten(string(out))); err != nil {
		return err
	}
	for _, extra := range r.sc.ShowExtra {
		if err := r.check(ctx, "show reports: "+extra,
			outputContains(string(out), extra), extra, flatten(string(out))); err != nil {
			return err
		}
	}

	if r.sc.ShowOriginal != SkipOriginalShow {
		origTag := "linux_x86_64"
		if r.sc.ShowOriginal == OriginalShowsPolicy {
			origTag = r.pol.PlatformTag()
		}
		out, err := r.exec(ctx, r.producer, showCommand(d.cfg.Tool.Command, r.sc.OriginalWheel), false)
		if err != nil {
			return err
		}
		sentence := fmt.Sprintf("%s is consistent with the following platform tag: %q", r.sc.OriginalWheel, origTag)
		if err := r.check(ctx, "show reports the original wheel's tag",
			outputContains(string(out), sentence), sentence, flatten(string(out))); err != nil {
			return err
		}
	}

	if r.sc.RPathChecks {
		if err := d.checkRPaths(ctx, r, expected); err != nil {
			return err
		}
	}
	return nil
}

// checkRPaths opens the repaired wheel on the host and verifies the
// grafted library's dynamic section. The graft must resolve its own
// dependencies from inside the wheel, so its single DT_RPATH has to be
// "$ORIGIN/.".
func (d *Driver) checkRPaths(ctx context.Context, r *run, artifact string) error {
	w, err := inspect.Open(filepath.Join(r.ioDir, artifact))
	if err != nil {
		return err
	}
	defer w.Close()

	grafted := 0
	found := false
	for _, member := range w.Members() {
		if !strings.Contains(member, "testrpath/.libs/lib") {
			continue
		}
		rpaths, err := w.DynRPaths(member)
		if err != nil {
			return r.check(ctx, "grafted member parses as ELF", false,
				member+" is a shared object", err.Error())
		}
		grafted++
		if !strings.Contains(member, ".libs/liba") {
			continue
		}
		found = true
		ok := len(rpaths) == 1 && rpaths[0] == "$ORIGIN/."
		if err := r.check(ctx, "grafted library rpath is $ORIGIN/.", ok,
			`exactly one DT_RPATH equal to "$ORIGIN/."`,
			fmt.Sprintf("%v in %s", rpaths, member)); err != nil {
			return err
		}
	}
	return r.check(ctx, "repaired wheel contains the grafted library", found,
		"a testrpath/.libs/liba member",
		fmt.Sprintf("%d grafted members, none of them liba", grafted))
}

// install brings up the consumer environment and installs the artifact.
func (d *Driver) install(ctx context.Context, r *run) error {
	if err := r.advance(ctx, StateInstalling); err != nil {
		return err
	}

	consumer, err := d.manager.Acquire(ctx, docker.StartSpec{
		Name:   containerName("consumer", r.id),
		Image:  d.cfg.Consumer.Image,
		Mounts: d.mounts(r),
	})
	if err != nil {
		return err
	}
	r.consumer = consumer

	for _, cmd := range []docker.Command{
		{Argv: []string{"pip", "install", "-U", "pip"}},
		{Argv: []string{"pip", "install", ioMount + "/" + r.artifact}},
	} {
		if _, err := r.exec(ctx, consumer, cmd, false); err != nil {
			return err
		}
	}
	return nil
}

// verify exercises the installed wheel in the consumer.
func (d *Driver) verify(ctx context.Context, r *run) error {
	if err := r.advance(ctx, StateVerifying); err != nil {
		return err
	}
	for _, v := range r.sc.Verify {
		out, err := r.exec(ctx, r.consumer, v.Command, false)
		if err != nil {
			return err
		}
		if v.Expect == "" {
			continue
		}
		if err := r.check(ctx, v.Name, literalEquals(string(out), v.Expect),
			v.Expect, strings.TrimSpace(string(out))); err != nil {
			return err
		}
	}
	return nil
}

// advance validates the transition and journals the new state.
func (r *run) advance(ctx context.Context, to string) error {
	next, err := advanceState(r.state, to)
	if err != nil {
		return err
	}
	r.state = next
	return r.d.journal.UpdateState(ctx, r.id, next)
}

// exec runs cmd in env, journaling the execution whether or not it
// succeeded. expected marks commands whose non-zero exit the scenario
// anticipates; the CommandError still comes back for the caller to
// classify. Failures that never produced an exit status, such as a decode
// error, are not journaled as commands.
func (r *run) exec(ctx context.Context, env *docker.Environment, cmd docker.Command, expected bool) ([]byte, error) {
	out, execErr := env.Exec(ctx, cmd)

	exitCode := 0
	var cmdErr *docker.CommandError
	if errors.As(execErr, &cmdErr) {
		exitCode = cmdErr.ExitCode
	}
	if execErr == nil || cmdErr != nil {
		canonical, err := journal.MarshalCommand(cmd)
		if err != nil {
			return out, err
		}
		r.cmdSeq++
		rec := journal.CommandRecord{
			RunID:     r.id,
			Seq:       r.cmdSeq,
			Stage:     r.state,
			Container: env.Name(),
			Command:   string(canonical),
			ExitCode:  exitCode,
			Output:    string(out),
			Expected:  expected,
		}
		if err := r.d.journal.AppendCommand(ctx, rec); err != nil {
			return out, err
		}
		r.commands = append(r.commands, rec)
	}
	return out, execErr
}

// check journals one evaluated expectation and returns an AssertionError
// when it failed.
func (r *run) check(ctx context.Context, name string, ok bool, expected, actual string) error {
	detail := expected
	if !ok {
		detail = fmt.Sprintf("expected %q, got %q", expected, actual)
	}
	r.checkSeq++
	rec := journal.CheckRecord{
		RunID:  r.id,
		Seq:    r.checkSeq,
		Stage:  r.state,
		Name:   name,
		OK:     ok,
		Detail: detail,
	}
	if err := r.d.journal.AppendCheck(ctx, rec); err != nil {
		return err
	}
	r.checks = append(r.checks, rec)
	if !ok {
		return &AssertionError{Name: name, Expected: expected, Actual: actual}
	}
	return nil
}

// listIO returns the io directory's entries, sorted by name.
func (r *run) listIO() ([]string, error) {
	entries, err := os.ReadDir(r.ioDir)
	if err != nil {
		return nil, fmt.Errorf("list io dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (d *Driver) mounts(r *run) []docker.Mount {
	mounts := []docker.Mount{{Host: r.ioDir, Container: ioMount}}
	if d.cfg.Tool.Source != "" {
		mounts = append(mounts, docker.Mount{Host: d.cfg.Tool.Source, Container: toolMount})
	}
	return mounts
}

func containerName(role, runID string) string {
	return "wheelwright-" + role + "-" + runID
}

// repairCommand renders the tool invocation that retags origWheel against
// the target platform tag, writing the result next to it in /io.
func repairCommand(tool string, sc Scenario, targetTag, origWheel string) docker.Command {
	argv := []string{tool}
	if sc.RepairVerbose {
		argv = append(argv, "-v")
	}
	argv = append(argv, "repair", "--plat", targetTag, "-w", ioMount, ioMount+"/"+origWheel)
	return docker.Command{Argv: argv, Env: sc.RepairEnv}
}

func showCommand(tool, file string) docker.Command {
	return docker.Command{Argv: []string{tool, "show", ioMount + "/" + file}}
}

// taggedWith filters filenames mentioning the policy name, mirroring how
// repaired artifacts are picked out of the io listing.
func taggedWith(files []string, policyName string) []string {
	var out []string
	for _, f := range files {
		if strings.Contains(f, policyName) {
			out = append(out, f)
		}
	}
	return out
}
