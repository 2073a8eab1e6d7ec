package executor

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"conveyor/pkg/api"
	"conveyor/pkg/util/context"
	"conveyor/pkg/util/maps"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// ScanSpec is the kind specific payload of a scan stage: the SAST/SCA
// endpoint to call and the artifact to submit.
type ScanSpec struct {
	Endpoint    string `mapstructure:"endpoint"`
	Artifact    string `mapstructure:"artifact"`
	TokenSecret string `mapstructure:"token_secret"` // secret name holding the scanner token
}

// scanReport is the verdict document returned by the scanner.
type scanReport struct {
	Verdict  string `json:"verdict"` // pass | fail
	Findings int    `json:"findings"`
	Detail   string `json:"detail,omitempty"`
}

// NewScan returns the executor for scan stages. Transport retries are
// delegated to the retryable client; errors that survive them are reported
// transient so idempotent stages can be re-dispatched.
func NewScan() Executor {
	return scanExecutor{}
}

type scanExecutor struct{}

func (scanExecutor) Kind() api.Kind {
	return api.KindScan
}

func (scanExecutor) Validate(spec api.StageSpec) error {
	var s ScanSpec
	if err := maps.Decode(spec.Spec, &s); err != nil {
		return ValidationError{StageID: spec.ID, Reason: err.Error()}
	}
	if s.Endpoint == "" {
		return ValidationError{StageID: spec.ID, Reason: "scan endpoint is required"}
	}
	if s.Artifact == "" {
		return ValidationError{StageID: spec.ID, Reason: "scan input artifact is required"}
	}
	if s.TokenSecret != "" && !containsString(spec.Secrets, s.TokenSecret) {
		return ValidationError{StageID: spec.ID, Reason: fmt.Sprintf("token_secret %s is not declared in secrets", s.TokenSecret)}
	}
	return nil
}

func (scanExecutor) Run(ctx context.Context, sc StageContext) (Outputs, error) {
	var s ScanSpec
	if err := maps.Decode(sc.Spec.Spec, &s); err != nil {
		return nil, ValidationError{StageID: sc.Spec.ID, Reason: err.Error()}
	}

	a, rc, err := sc.Artifacts.Get(ctx, s.Artifact)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read artifact %s", s.Artifact)
	}
	content, err := ioutil.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read artifact %s", s.Artifact)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil

	req, err := retryablehttp.NewRequest(http.MethodPost, s.Endpoint, content)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build scan request for %s", s.Endpoint)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Artifact-Name", a.Name)
	req.Header.Set("X-Artifact-Checksum", a.Checksum)
	if s.TokenSecret != "" {
		token, _ := sc.Secrets.Value(s.TokenSecret)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	ctx.Logger().Infof("submitting artifact %s to scanner %s", a.Name, s.Endpoint)
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ExecutionError{
			Message:   errors.Wrapf(err, "cannot reach scanner at %s", s.Endpoint).Error(),
			Transient: true,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, ExecutionError{
			Message:   fmt.Sprintf("scanner at %s answered status %d", s.Endpoint, resp.StatusCode),
			Transient: true,
		}
	case resp.StatusCode >= 400:
		return nil, ExecutionError{
			Message: fmt.Sprintf("scanner at %s rejected the request with status %d", s.Endpoint, resp.StatusCode),
		}
	}

	var report scanReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, ExecutionError{
			Message: errors.Wrap(err, "cannot decode scanner report").Error(),
		}
	}
	if report.Verdict != "pass" {
		msg := fmt.Sprintf("scan reported verdict %s with %d findings", report.Verdict, report.Findings)
		if report.Detail != "" {
			msg += ": " + report.Detail
		}
		return nil, ExecutionError{Message: msg}
	}

	return Outputs{
		"verdict":  report.Verdict,
		"findings": report.Findings,
	}, nil
}

func containsString(in []string, s string) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}
