package container

import (
	"errors"
	"fmt"
)

// Sentinel errors for the container operations. Stage failures wrap these so
// callers can classify without string matching.
var (
	ErrBuildFailed   = errors.New("image build failed")
	ErrPublishFailed = errors.New("image publish failed")
	ErrDeployFailed  = errors.New("deploy failed")
	ErrUnhealthy     = errors.New("instance unhealthy")
)

// ImageReference is a registry-qualified, tagged identifier for a built
// image. The first tag is the run-specific one; floating tags like "latest"
// follow it.
type ImageReference struct {
	Registry   string
	Repository string
	Tags       []string
}

// Primary returns the run-specific tag.
func (r ImageReference) Primary() string {
	if len(r.Tags) == 0 {
		return ""
	}
	return r.Tags[0]
}

// Name renders the full image name for one tag.
func (r ImageReference) Name(tag string) string {
	if r.Registry != "" {
		return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, tag)
	}
	return fmt.Sprintf("%s:%s", r.Repository, tag)
}

// PrimaryName renders the full image name for the run-specific tag.
func (r ImageReference) PrimaryName() string {
	return r.Name(r.Primary())
}

// Names renders the full image name for every tag, primary first.
func (r ImageReference) Names() []string {
	names := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		names = append(names, r.Name(t))
	}
	return names
}

func (r ImageReference) String() string {
	return r.PrimaryName()
}

// DeploymentTarget is a named running instance of a built image bound to a
// host port.
type DeploymentTarget struct {
	Name  string
	Image string
	Port  int
	URL   string
}
