// Package dynamo stores profiles, personas, matches and the run status in DynamoDB tables keyed by user id.
package dynamo

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/models"
	"github.com/spigell/matchmaker/internal/store"
)

const (
	keyUserID = "user_id"
	keyID     = "id"
	statusID  = "matchmaking"

	// DynamoDB limits per request.
	maxBatchGet      = 100
	maxTransactItems = 100
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type Tables struct {
	Profiles string `mapstructure:"profiles"`
	Matches  string `mapstructure:"matches"`
	Personas string `mapstructure:"personas"`
	Status   string `mapstructure:"status"`
}

func (t Tables) withDefaults() Tables {
	if t.Profiles == "" {
		t.Profiles = "profiles"
	}
	if t.Matches == "" {
		t.Matches = "matches"
	}
	if t.Personas == "" {
		t.Personas = "personas"
	}
	if t.Status == "" {
		t.Status = "matchmaking_status"
	}
	return t
}

type Store struct {
	client API
	tables Tables
	now    func() time.Time
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

type matchesItem struct {
	UserID      string                 `dynamodbav:"user_id"`
	Matches     []models.RecordedMatch `dynamodbav:"matches"`
	LastUpdated *time.Time             `dynamodbav:"last_updated,omitempty"`
}

type statusItem struct {
	ID           string          `dynamodbav:"id"`
	Status       models.RunState `dynamodbav:"status"`
	LastStarted  *time.Time      `dynamodbav:"last_started,omitempty"`
	LastFinished *time.Time      `dynamodbav:"last_finished,omitempty"`
}

// NewClient builds a DynamoDB client from the default AWS configuration chain.
// endpoint overrides the service URL, e.g. for DynamoDB Local.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func New(client API, tables Tables, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, tables: tables.withDefaults(), now: time.Now, logger: logger}
}

func userKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{keyUserID: &types.AttributeValueMemberS{Value: id}}
}

func (s *Store) AllProfiles(ctx context.Context) ([]*models.Profile, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.tables.Profiles),
	})

	var profiles []*models.Profile
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table '%s': %w", s.tables.Profiles, err)
		}

		var batch []*models.Profile
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profiles: %w", err)
		}
		profiles = append(profiles, batch...)
	}

	s.logger.Debug("loaded profiles", zap.String("table", s.tables.Profiles), zap.Int("count", len(profiles)))

	return profiles, nil
}

func (s *Store) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	found, err := s.getItem(ctx, s.tables.Profiles, userKey(userID), &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("profile %s: %w", userID, store.ErrNotFound)
	}
	return &profile, nil
}

func (s *Store) Matches(ctx context.Context, userID string) (*models.StoredMatches, error) {
	var item matchesItem
	found, err := s.getItem(ctx, s.tables.Matches, userKey(userID), &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return &models.StoredMatches{}, nil
	}
	return &models.StoredMatches{Matches: item.Matches, LastUpdated: item.LastUpdated}, nil
}

func (s *Store) SaveMatches(ctx context.Context, userID string, matches []models.RecordedMatch, updateTimestamp bool) error {
	item := matchesItem{UserID: userID, Matches: nonNil(matches)}
	if updateTimestamp {
		now := s.now()
		item.LastUpdated = &now
	} else {
		prev, err := s.Matches(ctx, userID)
		if err != nil {
			return err
		}
		item.LastUpdated = prev.LastUpdated
	}

	return s.putItem(ctx, s.tables.Matches, item)
}

// BatchSaveMatches writes all lists in a single transaction. Batches larger than one
// transaction allows are split and are only atomic per chunk.
func (s *Store) BatchSaveMatches(ctx context.Context, matches map[string][]models.RecordedMatch) error {
	now := s.now()

	writes := make([]types.TransactWriteItem, 0, len(matches))
	for _, userID := range slices.Sorted(maps.Keys(matches)) {
		av, err := attributevalue.MarshalMap(matchesItem{UserID: userID, Matches: nonNil(matches[userID]), LastUpdated: &now})
		if err != nil {
			return fmt.Errorf("failed to marshal matches of %s: %w", userID, err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(s.tables.Matches), Item: av},
		})
	}

	if len(writes) > maxTransactItems {
		s.logger.Warn("matches batch split into multiple transactions, it is atomic per chunk only",
			zap.Int("users", len(writes)),
			zap.Int("chunks", (len(writes)+maxTransactItems-1)/maxTransactItems),
		)
	}

	for start := 0; start < len(writes); start += maxTransactItems {
		end := min(start+maxTransactItems, len(writes))
		if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: writes[start:end],
		}); err != nil {
			return fmt.Errorf("failed to write matches batch to table '%s': %w", s.tables.Matches, err)
		}
	}

	s.logger.Debug("saved matches batch", zap.Int("users", len(writes)))

	return nil
}

func (s *Store) MatchmakingStatus(ctx context.Context) (*models.MatchmakingStatus, error) {
	key := map[string]types.AttributeValue{keyID: &types.AttributeValueMemberS{Value: statusID}}

	var item statusItem
	found, err := s.getItem(ctx, s.tables.Status, key, &item)
	if err != nil {
		return nil, err
	}
	if !found || item.Status == "" {
		return models.DefaultStatus(), nil
	}

	return &models.MatchmakingStatus{
		Status:       item.Status,
		LastStarted:  item.LastStarted,
		LastFinished: item.LastFinished,
	}, nil
}

func (s *Store) SaveMatchmakingStatus(ctx context.Context, status *models.MatchmakingStatus) error {
	return s.putItem(ctx, s.tables.Status, statusItem{
		ID:           statusID,
		Status:       status.Status,
		LastStarted:  status.LastStarted,
		LastFinished: status.LastFinished,
	})
}

func (s *Store) Personas(ctx context.Context, ids []string) (map[string]*models.Persona, error) {
	found := make(map[string]*models.Persona, len(ids))

	for start := 0; start < len(ids); start += maxBatchGet {
		end := min(start+maxBatchGet, len(ids))

		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, userKey(id))
		}

		request := map[string]types.KeysAndAttributes{s.tables.Personas: {Keys: keys}}
		for len(request) > 0 {
			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, fmt.Errorf("failed to batch get from table '%s': %w", s.tables.Personas, err)
			}

			var personas []*models.Persona
			if err := attributevalue.UnmarshalListOfMaps(out.Responses[s.tables.Personas], &personas); err != nil {
				return nil, fmt.Errorf("failed to unmarshal personas: %w", err)
			}
			for _, p := range personas {
				found[p.UserID] = p
			}

			request = out.UnprocessedKeys
		}
	}

	return found, nil
}

func (s *Store) SavePersona(ctx context.Context, persona *models.Persona) error {
	return s.putItem(ctx, s.tables.Personas, persona)
}

func (s *Store) Close() error { return nil }

func (s *Store) getItem(ctx context.Context, table string, key map[string]types.AttributeValue, out any) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get item from table '%s': %w", table, err)
	}
	if len(result.Item) == 0 {
		return false, nil
	}

	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item from table '%s': %w", table, err)
	}
	return true, nil
}

func (s *Store) putItem(ctx context.Context, table string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to put item in table '%s': %w", table, err)
	}
	return nil
}

// nonNil keeps empty lists as empty DynamoDB lists rather than NULL.
func nonNil(matches []models.RecordedMatch) []models.RecordedMatch {
	if matches == nil {
		return []models.RecordedMatch{}
	}
	return matches
}

