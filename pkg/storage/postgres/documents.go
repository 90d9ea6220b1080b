package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/blueline/blueline/pkg/authz"
	"github.com/blueline/blueline/pkg/documents"
)

const documentColumns = `id, title, description, original_blueprint_url, original_blueprint_filename,
		markup_data, location, created_by, site_id, is_deleted, preview_image_url,
		markup_count, created_at, updated_at`

// DocumentStore is the PostgreSQL gateway for markup documents. It applies
// exactly the predicate it is given and nothing else; all visibility policy
// lives upstream.
type DocumentStore struct {
	conns *ConnectionManager
}

// NewDocumentStore creates a document store over the given connections.
func NewDocumentStore(conns *ConnectionManager) *DocumentStore {
	return &DocumentStore{conns: conns}
}

var _ documents.Store = (*DocumentStore)(nil)

// List runs the compiled predicate plus query mechanics against a replica.
// The total count and the page come from the same condition so pagination
// never disagrees with the filter.
func (s *DocumentStore) List(ctx context.Context, pred authz.Predicate, opts documents.ListOptions) ([]*documents.MarkupDocument, int, error) {
	b := &sqlBuilder{}
	where, err := b.compile(pred)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to compile list predicate: %w", err)
	}

	if opts.Search != "" {
		where = fmt.Sprintf(`%s AND title ILIKE %s ESCAPE '\'`,
			where, b.bind("%"+escapeLike(opts.Search)+"%"))
	}

	db := s.conns.Replica()

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM markup_documents WHERE %s", where)
	if err := db.QueryRowContext(ctx, countQuery, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM markup_documents
		WHERE %s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		documentColumns, where, orderClause(opts.OrderBy, opts.Order),
		b.bind(opts.Limit), b.bind(opts.Offset))

	rows, err := db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*documents.MarkupDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, total, nil
}

// GetByID fetches one row regardless of its deleted flag; deciding whether a
// deleted row is visible belongs to the caller. Absent ids return (nil, nil).
func (s *DocumentStore) GetByID(ctx context.Context, id string) (*documents.MarkupDocument, error) {
	query := fmt.Sprintf("SELECT %s FROM markup_documents WHERE id = $1", documentColumns)

	doc, err := scanDocument(s.conns.Primary().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *DocumentStore) Insert(ctx context.Context, doc *documents.MarkupDocument) error {
	markup, err := marshalMarkup(doc.MarkupData)
	if err != nil {
		return fmt.Errorf("failed to encode markup data: %w", err)
	}

	query := `
		INSERT INTO markup_documents (
			id, title, description, original_blueprint_url, original_blueprint_filename,
			markup_data, location, created_by, site_id, is_deleted, preview_image_url,
			markup_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = s.conns.Primary().ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.Description,
		doc.OriginalBlueprintURL,
		doc.OriginalBlueprintFilename,
		markup,
		string(doc.Location),
		doc.CreatedBy,
		doc.SiteID,
		doc.IsDeleted,
		doc.PreviewImageURL,
		doc.MarkupCount,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// UpdateByID applies the patch to a live row. A deleted or missing row
// returns (nil, nil) so callers see the same shape for both.
func (s *DocumentStore) UpdateByID(ctx context.Context, id string, patch documents.StorePatch) (*documents.MarkupDocument, error) {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	addSet := func(col string, v interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, v)
		argPos++
	}

	if patch.Title != nil {
		addSet("title", *patch.Title)
	}
	if patch.Description != nil {
		addSet("description", *patch.Description)
	}
	if patch.MarkupData != nil {
		markup, err := marshalMarkup(patch.MarkupData)
		if err != nil {
			return nil, fmt.Errorf("failed to encode markup data: %w", err)
		}
		addSet("markup_data", markup)
	}
	if patch.MarkupCount != nil {
		addSet("markup_count", *patch.MarkupCount)
	}
	if patch.PreviewImageURL != nil {
		addSet("preview_image_url", *patch.PreviewImageURL)
	}
	addSet("updated_at", patch.UpdatedAt)

	query := fmt.Sprintf(`
		UPDATE markup_documents
		SET %s
		WHERE id = $%d AND is_deleted = FALSE
		RETURNING %s`,
		strings.Join(setClauses, ", "), argPos, documentColumns)
	args = append(args, id)

	doc, err := scanDocument(s.conns.Primary().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return doc, nil
}

// SoftDeleteByID flips the deleted flag on a live row. Already-deleted and
// missing rows both return (nil, nil).
func (s *DocumentStore) SoftDeleteByID(ctx context.Context, id string, at time.Time) (*documents.MarkupDocument, error) {
	query := fmt.Sprintf(`
		UPDATE markup_documents
		SET is_deleted = TRUE, deleted_at = $2, updated_at = $2
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING %s`, documentColumns)

	doc, err := scanDocument(s.conns.Primary().QueryRowContext(ctx, query, id, at))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to soft-delete document: %w", err)
	}
	return doc, nil
}

// PurgeDeletedBefore permanently removes soft-deleted rows whose deletion
// predates the cutoff. Used by the retention sweeper, never the request path.
func (s *DocumentStore) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conns.Primary().ExecContext(ctx,
		"DELETE FROM markup_documents WHERE is_deleted = TRUE AND deleted_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted documents: %w", err)
	}
	return res.RowsAffected()
}

// GetSiteOrganization resolves a site to its organization. Unknown sites
// return (nil, nil).
func (s *DocumentStore) GetSiteOrganization(ctx context.Context, siteID string) (*string, error) {
	var org sql.NullString
	err := s.conns.Replica().QueryRowContext(ctx,
		"SELECT organization_id FROM sites WHERE id = $1", siteID).Scan(&org)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get site organization: %w", err)
	}
	if !org.Valid {
		return nil, nil
	}
	return &org.String, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*documents.MarkupDocument, error) {
	var doc documents.MarkupDocument
	var markup []byte
	var location string
	var siteID sql.NullString

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Description,
		&doc.OriginalBlueprintURL,
		&doc.OriginalBlueprintFilename,
		&markup,
		&location,
		&doc.CreatedBy,
		&siteID,
		&doc.IsDeleted,
		&doc.PreviewImageURL,
		&doc.MarkupCount,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Location = documents.Location(location)
	if siteID.Valid {
		doc.SiteID = &siteID.String
	}
	if len(markup) > 0 {
		if err := json.Unmarshal(markup, &doc.MarkupData); err != nil {
			return nil, fmt.Errorf("corrupt markup data on %s: %w", doc.ID, err)
		}
	}

	return &doc, nil
}

func marshalMarkup(data []json.RawMessage) ([]byte, error) {
	if data == nil {
		data = []json.RawMessage{}
	}
	return json.Marshal(data)
}
