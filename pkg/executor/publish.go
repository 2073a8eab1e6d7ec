package executor

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"conveyor/pkg/api"
	"conveyor/pkg/util/context"
	"conveyor/pkg/util/maps"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// PublishSpec is the kind specific payload of a publish stage: the repository
// manager to upload to and the artifacts to push.
type PublishSpec struct {
	Repository  string   `mapstructure:"repository"` // base URL of the repository manager
	Path        string   `mapstructure:"path"`       // repository path prefix
	Artifacts   []string `mapstructure:"artifacts"`
	UserSecret  string   `mapstructure:"user_secret"`
	TokenSecret string   `mapstructure:"token_secret"`
}

// NewPublish returns the executor for publish stages. Publishing has side
// effects on the remote repository, so it is never auto-retried: a failed
// upload is terminal and surfaced for manual remediation.
func NewPublish() Executor {
	return publishExecutor{}
}

type publishExecutor struct{}

func (publishExecutor) Kind() api.Kind {
	return api.KindPublish
}

func (publishExecutor) Validate(spec api.StageSpec) error {
	var s PublishSpec
	if err := maps.Decode(spec.Spec, &s); err != nil {
		return ValidationError{StageID: spec.ID, Reason: err.Error()}
	}
	if s.Repository == "" {
		return ValidationError{StageID: spec.ID, Reason: "publish repository is required"}
	}
	if len(s.Artifacts) == 0 {
		return ValidationError{StageID: spec.ID, Reason: "publish requires at least one artifact"}
	}
	for _, name := range []string{s.UserSecret, s.TokenSecret} {
		if name != "" && !containsString(spec.Secrets, name) {
			return ValidationError{StageID: spec.ID, Reason: fmt.Sprintf("credential secret %s is not declared in secrets", name)}
		}
	}
	return nil
}

func (publishExecutor) Run(ctx context.Context, sc StageContext) (Outputs, error) {
	var s PublishSpec
	if err := maps.Decode(sc.Spec.Spec, &s); err != nil {
		return nil, ValidationError{StageID: sc.Spec.ID, Reason: err.Error()}
	}

	// Retries stay disabled: a timed out upload may still have landed.
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil

	var published []interface{}
	for _, name := range s.Artifacts {
		a, rc, err := sc.Artifacts.Get(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read artifact %s", name)
		}
		content, err := ioutil.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read artifact %s", name)
		}

		target := strings.TrimSuffix(s.Repository, "/")
		if s.Path != "" {
			target += "/" + strings.Trim(s.Path, "/")
		}
		target += "/" + name

		req, err := retryablehttp.NewRequest(http.MethodPut, target, content)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot build upload request for %s", target)
		}
		req = req.WithContext(ctx)
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("X-Checksum-SHA256", a.Checksum)
		if s.UserSecret != "" && s.TokenSecret != "" {
			user, _ := sc.Secrets.Value(s.UserSecret)
			token, _ := sc.Secrets.Value(s.TokenSecret)
			req.SetBasicAuth(user, token)
		}

		ctx.Logger().Infof("publishing artifact %s to %s", name, target)
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ExecutionError{
				Message: errors.Wrapf(err, "cannot upload artifact %s to %s", name, target).Error(),
			}
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, ExecutionError{
				Message: fmt.Sprintf("repository at %s answered status %d for artifact %s", s.Repository, resp.StatusCode, name),
			}
		}
		published = append(published, target)
	}

	return Outputs{"published": published}, nil
}
