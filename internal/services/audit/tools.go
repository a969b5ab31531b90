package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jimrubenstein/randomproof/internal/draw/workflow"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
	"github.com/jimrubenstein/randomproof/internal/services/ledger"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/api"
)

// Records resolves a commitment by entity hash or request id.
type Records interface {
	Record(ctx context.Context, key string) (api.RecordResponse, error)
}

// Events lists the audit trail.
type Events interface {
	Events(ctx context.Context, filter string, after int64, pageSize int) (api.EventsResponse, error)
}

// LedgerRecords serves Records and Events from a ledger in this process.
type LedgerRecords struct {
	Ledger *ledger.Ledger
}

// Record implements Records.
func (r LedgerRecords) Record(ctx context.Context, key string) (api.RecordResponse, error) {
	record, err := r.Ledger.Lookup(ctx, strings.TrimSpace(key))
	if err != nil {
		return api.RecordResponse{}, err
	}
	return api.NewRecordResponse(record), nil
}

// Events implements Events.
func (r LedgerRecords) Events(ctx context.Context, filter string, after int64, pageSize int) (api.EventsResponse, error) {
	page, err := r.Ledger.ListEvents(ctx, ledger.EventQuery{Filter: filter, AfterSeq: after, PageSize: pageSize})
	if err != nil {
		return api.EventsResponse{}, err
	}
	out := api.EventsResponse{
		Events:     make([]api.EventResponse, 0, len(page.Events)),
		NextCursor: page.NextCursor,
	}
	for _, event := range page.Events {
		out.Events = append(out.Events, api.NewEventResponse(event))
	}
	return out, nil
}

// LookupInput represents the MCP tool input for a commitment lookup.
type LookupInput struct {
	Key string `json:"key" jsonschema:"entity hash (0x-prefixed hex) or numeric request id"`
}

// LookupResult represents the MCP tool output for a commitment lookup.
type LookupResult struct {
	Found  bool                `json:"found" jsonschema:"whether a commitment exists for the key"`
	Record *api.RecordResponse `json:"record,omitempty" jsonschema:"the commitment record"`
}

// LookupCommitmentTool defines the MCP tool schema for commitment lookups.
func LookupCommitmentTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "lookup_commitment",
		Description: "Looks up a randomness commitment by entity hash or request id and returns every stored field.",
	}
}

// LookupCommitmentHandler executes a commitment lookup.
func LookupCommitmentHandler(records Records) mcp.ToolHandlerFor[LookupInput, LookupResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LookupInput) (*mcp.CallToolResult, LookupResult, error) {
		if strings.TrimSpace(input.Key) == "" {
			return nil, LookupResult{}, fmt.Errorf("key is required")
		}
		record, err := records.Record(ctx, input.Key)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeNotFound) {
				return nil, LookupResult{Found: false}, nil
			}
			return nil, LookupResult{}, fmt.Errorf("lookup commitment: %w", err)
		}
		return nil, LookupResult{Found: true, Record: &record}, nil
	}
}

// VerifyInput represents the MCP tool input for draw verification.
type VerifyInput struct {
	Data             string   `json:"data" jsonschema:"the published entries, one per line"`
	Salt             string   `json:"salt" jsonschema:"the revealed salt"`
	PreSort          bool     `json:"pre_sort,omitempty" jsonschema:"whether entries were sorted before hashing"`
	Winners          int      `json:"winners" jsonschema:"number of winners drawn"`
	Key              string   `json:"key,omitempty" jsonschema:"optional entity hash or request id to read the commitment and randomness from the ledger"`
	EntityHash       string   `json:"entity_hash,omitempty" jsonschema:"published entity hash when no key is given"`
	Randomness       string   `json:"randomness,omitempty" jsonschema:"published randomness (decimal or 0x hex) when no key is given"`
	PublishedWinners []string `json:"published_winners,omitempty" jsonschema:"published winners to compare against"`
}

// VerifyResult represents the MCP tool output for draw verification.
type VerifyResult struct {
	Status     string   `json:"status" jsonschema:"valid, invalid or unverifiable"`
	Message    string   `json:"message" jsonschema:"human readable verdict"`
	EntityHash string   `json:"entity_hash" jsonschema:"recomputed entity hash"`
	SaltDigest string   `json:"salt_digest" jsonschema:"recomputed salt digest"`
	Order      []string `json:"order,omitempty" jsonschema:"recomputed shuffled order"`
	Winners    []string `json:"winners,omitempty" jsonschema:"recomputed winners"`
}

// VerifyDrawTool defines the MCP tool schema for draw verification.
func VerifyDrawTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "verify_draw",
		Description: "Recomputes a draw from its public inputs and reports whether the commitment and winners match.",
	}
}

// VerifyDrawHandler executes a draw verification. When a key is given the
// published hash and randomness come from the ledger record.
func VerifyDrawHandler(records Records) mcp.ToolHandlerFor[VerifyInput, VerifyResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input VerifyInput) (*mcp.CallToolResult, VerifyResult, error) {
		in := workflow.VerifyInput{
			Data:             input.Data,
			Salt:             input.Salt,
			PreSort:          input.PreSort,
			Winners:          input.Winners,
			EntityHash:       input.EntityHash,
			Randomness:       input.Randomness,
			PublishedWinners: input.PublishedWinners,
		}
		if key := strings.TrimSpace(input.Key); key != "" && records != nil {
			record, err := records.Record(ctx, key)
			switch {
			case err == nil:
				in.EntityHash = record.EntityHash
				in.SaltDigest = record.SaltDigest
				in.Randomness = ""
				if record.Fulfilled {
					in.Randomness = record.Randomness
				}
			case !apperrors.HasCode(err, apperrors.CodeNotFound):
				return nil, VerifyResult{}, fmt.Errorf("lookup commitment: %w", err)
			default:
				in.EntityHash = ""
			}
		}

		v := workflow.Verify(in)
		result := VerifyResult{
			Status:     v.Status.String(),
			Message:    v.Message(""),
			EntityHash: v.EntityHash.String(),
			SaltDigest: v.SaltDigest.String(),
		}
		if v.Result != nil {
			result.Order = v.Result.Order
			result.Winners = v.Result.Winners
		}
		return nil, result, nil
	}
}

// EventListInput represents the MCP tool input for listing audit events.
type EventListInput struct {
	Filter   string `json:"filter,omitempty" jsonschema:"AIP-160 filter over type, request_id, entity_hash, requester and ts"`
	After    int64  `json:"after,omitempty" jsonschema:"return events after this sequence number"`
	PageSize int    `json:"page_size,omitempty" jsonschema:"maximum events to return"`
}

// EventListResult represents the MCP tool output for listing audit events.
type EventListResult struct {
	Events     []api.EventResponse `json:"events" jsonschema:"audit events in sequence order"`
	NextCursor string              `json:"next_cursor,omitempty" jsonschema:"pass as after to read the next page"`
}

// EventListTool defines the MCP tool schema for the audit trail.
func EventListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_ledger_events",
		Description: "Lists commitment ledger audit events (requested, fulfilled, cancelled) in sequence order.",
	}
}

// EventListHandler executes an audit trail listing.
func EventListHandler(events Events) mcp.ToolHandlerFor[EventListInput, EventListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EventListInput) (*mcp.CallToolResult, EventListResult, error) {
		page, err := events.Events(ctx, input.Filter, input.After, input.PageSize)
		if err != nil {
			return nil, EventListResult{}, fmt.Errorf("list events: %w", err)
		}
		return nil, EventListResult{Events: page.Events, NextCursor: page.NextCursor}, nil
	}
}
