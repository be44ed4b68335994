// Package eventbridge maps the trigger substrate onto AWS EventBridge
// Scheduler one-time schedules.
package eventbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"

	"surveyplanner/internal/trigger"
)

// API is the subset of the scheduler client used here.
type API interface {
	CreateScheduleGroup(ctx context.Context, in *scheduler.CreateScheduleGroupInput, opts ...func(*scheduler.Options)) (*scheduler.CreateScheduleGroupOutput, error)
	GetScheduleGroup(ctx context.Context, in *scheduler.GetScheduleGroupInput, opts ...func(*scheduler.Options)) (*scheduler.GetScheduleGroupOutput, error)
	DeleteScheduleGroup(ctx context.Context, in *scheduler.DeleteScheduleGroupInput, opts ...func(*scheduler.Options)) (*scheduler.DeleteScheduleGroupOutput, error)
	CreateSchedule(ctx context.Context, in *scheduler.CreateScheduleInput, opts ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	GetSchedule(ctx context.Context, in *scheduler.GetScheduleInput, opts ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error)
	DeleteSchedule(ctx context.Context, in *scheduler.DeleteScheduleInput, opts ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
	scheduler.ListSchedulesAPIClient
}

// ClientConfig selects region, credentials and an optional endpoint
// override such as LocalStack.
type ClientConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewClient builds a scheduler client. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain.
func NewClient(ctx context.Context, cfg ClientConfig) (*scheduler.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return scheduler.NewFromConfig(awsCfg, func(o *scheduler.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Store creates schedules that invoke TargetARN with RoleARN. Schedules
// delete themselves after they fire.
type Store struct {
	api       API
	targetARN string
	roleARN   string
}

func New(api API, targetARN, roleARN string) *Store {
	return &Store{api: api, targetARN: targetARN, roleARN: roleARN}
}

func (s *Store) CreateGroup(ctx context.Context, name string) error {
	_, err := s.api.CreateScheduleGroup(ctx, &scheduler.CreateScheduleGroupInput{Name: aws.String(name)})
	return mapError(err, trigger.ErrNotFound)
}

func (s *Store) CreateTrigger(ctx context.Context, spec trigger.Spec) error {
	target := spec.Target
	if target == "" {
		target = s.targetARN
	}
	in := &scheduler.CreateScheduleInput{
		Name:                       aws.String(spec.Name),
		GroupName:                  aws.String(spec.Group),
		ScheduleExpression:         aws.String(trigger.AtExpression(spec.FireAt)),
		ScheduleExpressionTimezone: aws.String("UTC"),
		FlexibleTimeWindow:         &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff},
		ActionAfterCompletion:      types.ActionAfterCompletionDelete,
		State:                      types.ScheduleStateEnabled,
		Target: &types.Target{
			Arn:     aws.String(target),
			RoleArn: aws.String(s.roleARN),
			Input:   aws.String(string(spec.Payload)),
		},
	}
	if spec.Description != "" {
		in.Description = aws.String(truncate(spec.Description, 512))
	}
	_, err := s.api.CreateSchedule(ctx, in)
	return mapError(err, trigger.ErrGroupNotFound)
}

func (s *Store) ListTriggers(ctx context.Context, group string) ([]trigger.Summary, error) {
	if _, err := s.api.GetScheduleGroup(ctx, &scheduler.GetScheduleGroupInput{Name: aws.String(group)}); err != nil {
		return nil, mapError(err, trigger.ErrGroupNotFound)
	}

	var out []trigger.Summary
	p := scheduler.NewListSchedulesPaginator(s.api, &scheduler.ListSchedulesInput{GroupName: aws.String(group)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, trigger.ErrGroupNotFound)
		}
		for _, sum := range page.Schedules {
			out = append(out, trigger.Summary{Name: aws.ToString(sum.Name), State: string(sum.State)})
		}
	}
	return out, nil
}

// FireExpression fetches the schedule expression, which ListSchedules
// omits. A schedule that vanished in between reports an empty expression.
func (s *Store) FireExpression(ctx context.Context, name, group string) (string, error) {
	got, err := s.api.GetSchedule(ctx, &scheduler.GetScheduleInput{Name: aws.String(name), GroupName: aws.String(group)})
	var nf *types.ResourceNotFoundException
	if errors.As(err, &nf) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get schedule %s: %w", name, err)
	}
	return aws.ToString(got.ScheduleExpression), nil
}

func (s *Store) DeleteTrigger(ctx context.Context, name, group string) error {
	_, err := s.api.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{Name: aws.String(name), GroupName: aws.String(group)})
	return mapError(err, trigger.ErrNotFound)
}

func (s *Store) DeleteGroup(ctx context.Context, name string) error {
	_, err := s.api.DeleteScheduleGroup(ctx, &scheduler.DeleteScheduleGroupInput{Name: aws.String(name)})
	return mapError(err, trigger.ErrNotFound)
}

// mapError translates scheduler errors into substrate sentinels. A missing
// resource becomes notFound, whose meaning depends on the call.
func mapError(err, notFound error) error {
	if err == nil {
		return nil
	}
	var conflict *types.ConflictException
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %s", trigger.ErrAlreadyExists, aws.ToString(conflict.Message))
	}
	var nf *types.ResourceNotFoundException
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", notFound, aws.ToString(nf.Message))
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
