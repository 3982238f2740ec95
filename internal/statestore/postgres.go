package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// Postgres is the authoritative StateStore binding. One table per record
// kind (streams, recordings, ai_tasks), each with an UPSERT-shaped Save and
// narrow UPDATE-only state transition methods — mirroring the original
// PgStateStore's save_*/update_*_state split, which keeps the hot
// transition path (state + last_error only) from re-writing the whole row.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) SaveStream(ctx context.Context, rec StreamRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO streams (stream_id, uri, codec, container, state, node_id, lease_id,
		                      output_dir, last_error, started_at, stopped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (stream_id) DO UPDATE SET
			uri = EXCLUDED.uri,
			codec = EXCLUDED.codec,
			container = EXCLUDED.container,
			state = EXCLUDED.state,
			node_id = EXCLUDED.node_id,
			lease_id = EXCLUDED.lease_id,
			output_dir = EXCLUDED.output_dir,
			last_error = EXCLUDED.last_error,
			started_at = EXCLUDED.started_at,
			stopped_at = EXCLUDED.stopped_at`,
		rec.StreamID, rec.URI, rec.Codec, rec.Container, string(rec.State), rec.NodeID, rec.LeaseID,
		rec.OutputDir, rec.LastError, rec.StartedAt, rec.StoppedAt,
	)
	return err
}

func (p *Postgres) GetStream(ctx context.Context, streamID string) (*StreamRecord, error) {
	var rec StreamRecord
	var state string
	err := p.db.QueryRowContext(ctx, `
		SELECT stream_id, uri, codec, container, state, node_id, lease_id, output_dir,
		       last_error, started_at, stopped_at
		FROM streams WHERE stream_id = $1`, streamID,
	).Scan(&rec.StreamID, &rec.URI, &rec.Codec, &rec.Container, &state, &rec.NodeID, &rec.LeaseID,
		&rec.OutputDir, &rec.LastError, &rec.StartedAt, &rec.StoppedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.State = ParseStreamState(state)
	return &rec, nil
}

func (p *Postgres) ListStreams(ctx context.Context, nodeID string) ([]StreamRecord, error) {
	var rows *sql.Rows
	var err error
	if nodeID == "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT stream_id, uri, codec, container, state, node_id, lease_id, output_dir,
			       last_error, started_at, stopped_at FROM streams`)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT stream_id, uri, codec, container, state, node_id, lease_id, output_dir,
			       last_error, started_at, stopped_at FROM streams WHERE node_id = $1`, nodeID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StreamRecord
	for rows.Next() {
		var rec StreamRecord
		var state string
		if err := rows.Scan(&rec.StreamID, &rec.URI, &rec.Codec, &rec.Container, &state, &rec.NodeID,
			&rec.LeaseID, &rec.OutputDir, &rec.LastError, &rec.StartedAt, &rec.StoppedAt); err != nil {
			return nil, err
		}
		rec.State = ParseStreamState(state)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteStream(ctx context.Context, streamID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM streams WHERE stream_id = $1`, streamID)
	return err
}

func (p *Postgres) UpdateStreamState(ctx context.Context, streamID string, state StreamState, lastError *string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE streams SET state = $1, last_error = $2 WHERE stream_id = $3`,
		string(state), lastError, streamID)
	return err
}

func (p *Postgres) SaveRecording(ctx context.Context, rec RecordingRecord) error {
	output, err := json.Marshal(rec.Output)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO recordings (recording_id, stream_id, format, output, state, node_id, lease_id,
		                         last_error, started_at, stopped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (recording_id) DO UPDATE SET
			format = EXCLUDED.format,
			output = EXCLUDED.output,
			state = EXCLUDED.state,
			node_id = EXCLUDED.node_id,
			lease_id = EXCLUDED.lease_id,
			last_error = EXCLUDED.last_error,
			started_at = EXCLUDED.started_at,
			stopped_at = EXCLUDED.stopped_at`,
		rec.RecordingID, rec.StreamID, rec.Format, output, string(rec.State), rec.NodeID, rec.LeaseID,
		rec.LastError, rec.StartedAt, rec.StoppedAt,
	)
	return err
}

func (p *Postgres) GetRecording(ctx context.Context, recordingID string) (*RecordingRecord, error) {
	var rec RecordingRecord
	var state string
	var output []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT recording_id, stream_id, format, output, state, node_id, lease_id, last_error,
		       started_at, stopped_at
		FROM recordings WHERE recording_id = $1`, recordingID,
	).Scan(&rec.RecordingID, &rec.StreamID, &rec.Format, &output, &state, &rec.NodeID, &rec.LeaseID,
		&rec.LastError, &rec.StartedAt, &rec.StoppedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.State = ParseRecordingState(state)
	if len(output) > 0 {
		if err := json.Unmarshal(output, &rec.Output); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (p *Postgres) ListRecordings(ctx context.Context, nodeID string) ([]RecordingRecord, error) {
	var rows *sql.Rows
	var err error
	if nodeID == "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT recording_id, stream_id, format, output, state, node_id, lease_id, last_error,
			       started_at, stopped_at FROM recordings`)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT recording_id, stream_id, format, output, state, node_id, lease_id, last_error,
			       started_at, stopped_at FROM recordings WHERE node_id = $1`, nodeID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordingRecord
	for rows.Next() {
		var rec RecordingRecord
		var state string
		var output []byte
		if err := rows.Scan(&rec.RecordingID, &rec.StreamID, &rec.Format, &output, &state, &rec.NodeID,
			&rec.LeaseID, &rec.LastError, &rec.StartedAt, &rec.StoppedAt); err != nil {
			return nil, err
		}
		rec.State = ParseRecordingState(state)
		if len(output) > 0 {
			if err := json.Unmarshal(output, &rec.Output); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteRecording(ctx context.Context, recordingID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM recordings WHERE recording_id = $1`, recordingID)
	return err
}

func (p *Postgres) UpdateRecordingState(ctx context.Context, recordingID string, state RecordingState, lastError *string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE recordings SET state = $1, last_error = $2 WHERE recording_id = $3`,
		string(state), lastError, recordingID)
	return err
}

func (p *Postgres) SaveAiTask(ctx context.Context, rec AiTaskRecord) error {
	modelConfig, err := json.Marshal(rec.ModelConfig)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO ai_tasks (task_id, stream_id, model_config, state, node_id, lease_id, last_error,
		                       frames_processed, detections_made, last_processed_frame)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (task_id) DO UPDATE SET
			model_config = EXCLUDED.model_config,
			state = EXCLUDED.state,
			node_id = EXCLUDED.node_id,
			lease_id = EXCLUDED.lease_id,
			last_error = EXCLUDED.last_error,
			frames_processed = EXCLUDED.frames_processed,
			detections_made = EXCLUDED.detections_made,
			last_processed_frame = EXCLUDED.last_processed_frame`,
		rec.TaskID, rec.StreamID, modelConfig, string(rec.State), rec.NodeID, rec.LeaseID, rec.LastError,
		rec.FramesProcessed, rec.DetectionsMade, rec.LastProcessedFrame,
	)
	return err
}

func (p *Postgres) GetAiTask(ctx context.Context, taskID string) (*AiTaskRecord, error) {
	var rec AiTaskRecord
	var state string
	var modelConfig []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT task_id, stream_id, model_config, state, node_id, lease_id, last_error,
		       frames_processed, detections_made, last_processed_frame
		FROM ai_tasks WHERE task_id = $1`, taskID,
	).Scan(&rec.TaskID, &rec.StreamID, &modelConfig, &state, &rec.NodeID, &rec.LeaseID, &rec.LastError,
		&rec.FramesProcessed, &rec.DetectionsMade, &rec.LastProcessedFrame)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.State = ParseAiTaskState(state)
	if len(modelConfig) > 0 {
		if err := json.Unmarshal(modelConfig, &rec.ModelConfig); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (p *Postgres) ListAiTasks(ctx context.Context, nodeID string) ([]AiTaskRecord, error) {
	var rows *sql.Rows
	var err error
	if nodeID == "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT task_id, stream_id, model_config, state, node_id, lease_id, last_error,
			       frames_processed, detections_made, last_processed_frame FROM ai_tasks`)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT task_id, stream_id, model_config, state, node_id, lease_id, last_error,
			       frames_processed, detections_made, last_processed_frame FROM ai_tasks WHERE node_id = $1`, nodeID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AiTaskRecord
	for rows.Next() {
		var rec AiTaskRecord
		var state string
		var modelConfig []byte
		if err := rows.Scan(&rec.TaskID, &rec.StreamID, &modelConfig, &state, &rec.NodeID, &rec.LeaseID,
			&rec.LastError, &rec.FramesProcessed, &rec.DetectionsMade, &rec.LastProcessedFrame); err != nil {
			return nil, err
		}
		rec.State = ParseAiTaskState(state)
		if len(modelConfig) > 0 {
			if err := json.Unmarshal(modelConfig, &rec.ModelConfig); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteAiTask(ctx context.Context, taskID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM ai_tasks WHERE task_id = $1`, taskID)
	return err
}

func (p *Postgres) UpdateAiTaskState(ctx context.Context, taskID string, state AiTaskState, lastError *string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE ai_tasks SET state = $1, last_error = $2 WHERE task_id = $3`,
		string(state), lastError, taskID)
	return err
}

func (p *Postgres) UpdateAiTaskStats(ctx context.Context, taskID string, framesDelta, detectionsDelta int64, lastProcessedFrame int64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE ai_tasks
		SET frames_processed = frames_processed + $1,
		    detections_made = detections_made + $2,
		    last_processed_frame = $3
		WHERE task_id = $4`,
		framesDelta, detectionsDelta, lastProcessedFrame, taskID,
	)
	return err
}

func (p *Postgres) HealthCheck(ctx context.Context) error {
	var one int
	return p.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}
