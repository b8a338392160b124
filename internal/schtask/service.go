package schtask

import (
	"context"
	"fmt"
)

// Service drives the host scheduler through a Runner. It holds no state of
// its own: the scheduler's task database is the single source of truth and
// may be changed by other actors between calls, so every operation that
// depends on presence re-queries it immediately beforehand.
type Service struct {
	runner   Runner
	resolver AccountResolver
}

// Option configures a Service.
type Option func(*Service)

// WithAccountResolver overrides the SID-to-account resolver used for the
// best-effort author fallback during listing.
func WithAccountResolver(resolver AccountResolver) Option {
	return func(s *Service) { s.resolver = resolver }
}

// NewService builds a Service on top of the given Runner.
func NewService(runner Runner, opts ...Option) *Service {
	s := &Service{runner: runner}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = &powershellResolver{runner: runner}
	}
	return s
}

// Exists reports whether the named task is currently registered.
func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	res, err := s.runner.Run(ctx, ExistsScript(name))
	if err != nil {
		return false, fmt.Errorf("query task %q: %w", name, err)
	}
	return res.ExitCode == 0, nil
}

// Create registers the task described by spec. Without the overwrite flag
// an existing task with the same name fails with ErrAlreadyExists; with it,
// the existing task is deleted and the spec registered in its place.
func (s *Service) Create(ctx context.Context, spec *TaskSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	present, err := s.Exists(ctx, spec.Name)
	if err != nil {
		return err
	}
	if present {
		if !spec.Overwrite {
			return fmt.Errorf("task %q: %w", spec.Name, ErrAlreadyExists)
		}
		if err := s.Delete(ctx, spec.Name); err != nil {
			return err
		}
	}
	res, err := s.runner.Run(ctx, BuildRegistrationFragment(spec))
	if err != nil {
		return fmt.Errorf("register task %q: %w", spec.Name, err)
	}
	if res.ExitCode != 0 {
		return &RegistrationError{Name: spec.Name, Output: diagnostic(res)}
	}
	return nil
}

// Delete unregisters the named task.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.mutate(ctx, "delete", name, DeleteScript(name))
}

// Run starts the named task immediately.
func (s *Service) Run(ctx context.Context, name string) error {
	return s.mutate(ctx, "start", name, RunScript(name))
}

// Enable enables the named task.
func (s *Service) Enable(ctx context.Context, name string) error {
	return s.mutate(ctx, "enable", name, EnableScript(name))
}

// Disable disables the named task.
func (s *Service) Disable(ctx context.Context, name string) error {
	return s.mutate(ctx, "disable", name, DisableScript(name))
}

// Stop stops a running instance of the named task.
func (s *Service) Stop(ctx context.Context, name string) error {
	return s.mutate(ctx, "stop", name, StopScript(name))
}

// mutate runs a single-purpose script against a task that must exist.
func (s *Service) mutate(ctx context.Context, op, name, script string) error {
	present, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("task %q: %w", name, ErrNotFound)
	}
	res, err := s.runner.Run(ctx, script)
	if err != nil {
		return fmt.Errorf("%s task %q: %w", op, name, err)
	}
	if res.ExitCode != 0 {
		return &OperationError{Op: op, Name: name, Output: diagnostic(res)}
	}
	return nil
}

// List enumerates the scheduler's tasks, freshly derived on every call, and
// applies the given filters.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]TaskRecord, error) {
	res, err := s.runner.Run(ctx, ListScript)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, &ListingError{Output: diagnostic(res)}
	}
	return interpretListing(ctx, res.Stdout, opts, s.resolver)
}

// ListPython lists only tasks with a Python-launching action.
func (s *Service) ListPython(ctx context.Context, opts ListOptions) ([]TaskRecord, error) {
	opts.OnlyPython = true
	return s.List(ctx, opts)
}
