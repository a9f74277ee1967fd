package synapse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

const (
	queryBundleRequest = "org.sagebionetworks.repo.model.table.QueryBundleRequest"
	// partMask bit for the query results
	partQueryResults = 0x1
)

var errJobPending = errors.New("query job still processing")

type queryRequest struct {
	ConcreteType string `json:"concreteType"`
	EntityID     string `json:"entityId"`
	Query        struct {
		SQL string `json:"sql"`
	} `json:"query"`
	PartMask int `json:"partMask"`
}

type asyncJobToken struct {
	Token string `json:"token"`
}

type queryResultBundle struct {
	QueryResult struct {
		QueryResults struct {
			Rows []struct {
				Values []*string `json:"values"`
			} `json:"rows"`
		} `json:"queryResults"`
	} `json:"queryResult"`
}

// Query runs sql against a table through the asynchronous query API and
// returns the rows as strings. Null cells are returned as "".
func (c *Client) Query(ctx context.Context, tableID, sql string) ([][]string, error) {
	if err := c.requireLogin("query"); err != nil {
		return nil, err
	}

	req := queryRequest{ConcreteType: queryBundleRequest, EntityID: tableID, PartMask: partQueryResults}
	req.Query.SQL = sql

	var job asyncJobToken
	base := "/repo/v1/entity/" + url.PathEscape(tableID) + "/table/query/async"
	if _, err := c.call(ctx, "query", http.MethodPost, base+"/start", req, &job); err != nil {
		return nil, err
	}

	c.logger.Debug("Started table query", "table", tableID, "token", job.Token)

	var bundle queryResultBundle
	poll := func() error {
		status, err := c.call(ctx, "query", http.MethodGet, base+"/get/"+url.PathEscape(job.Token), nil, &bundle)
		if err != nil {
			return backoff.Permanent(err)
		}
		if status == http.StatusAccepted {
			return errJobPending
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 5 * c.pollInterval
	b.MaxElapsedTime = c.timeout
	if err := backoff.Retry(poll, backoff.WithContext(b, ctx)); err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &FetchError{Op: "query", Err: fmt.Errorf("waiting for job %s: %w", job.Token, err)}
	}

	rows := bundle.QueryResult.QueryResults.Rows
	result := make([][]string, len(rows))
	for i, row := range rows {
		result[i] = make([]string, len(row.Values))
		for j, v := range row.Values {
			if v != nil {
				result[i][j] = *v
			}
		}
	}
	return result, nil
}

// QueryCohortFolder returns the id of the most recent folder of a cohort
// in the PRISSMM table
func (c *Client) QueryCohortFolder(ctx context.Context, tableID, cohort string) (string, error) {
	sql := fmt.Sprintf("SELECT id FROM %s WHERE cohort = '%s' ORDER BY name DESC LIMIT 1",
		tableID, strings.ReplaceAll(cohort, "'", "''"))

	rows, err := c.Query(ctx, tableID, sql)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] == "" {
		return "", fmt.Errorf("cohort %s in %s: %w", cohort, tableID, ErrNoRows)
	}
	return rows[0][0], nil
}

// EntityHeader is an item of a folder listing
type EntityHeader struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VersionNumber int    `json:"versionNumber"`
}

type childrenRequest struct {
	ParentID      string   `json:"parentId"`
	IncludeTypes  []string `json:"includeTypes"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

type childrenResponse struct {
	Page          []EntityHeader `json:"page"`
	NextPageToken string         `json:"nextPageToken"`
}

// ListChildren returns the files and folders of parentID, across all pages
func (c *Client) ListChildren(ctx context.Context, parentID string) ([]EntityHeader, error) {
	if err := c.requireLogin("children"); err != nil {
		return nil, err
	}

	req := childrenRequest{ParentID: parentID, IncludeTypes: []string{"file", "folder"}}
	var children []EntityHeader
	for {
		var page childrenResponse
		if _, err := c.call(ctx, "children", http.MethodPost, "/repo/v1/entity/children", req, &page); err != nil {
			return nil, err
		}
		children = append(children, page.Page...)

		if page.NextPageToken == "" {
			return children, nil
		}
		req.NextPageToken = page.NextPageToken
	}
}

// FindChild returns the child of parentID with the given name
func (c *Client) FindChild(ctx context.Context, parentID, name string) (EntityHeader, bool, error) {
	children, err := c.ListChildren(ctx, parentID)
	if err != nil {
		return EntityHeader{}, false, err
	}
	for _, child := range children {
		if child.Name == name {
			return child, true, nil
		}
	}
	return EntityHeader{}, false, nil
}
