package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- DOCUMENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS filename ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON document TYPE string DEFAULT 'pending';
    DEFINE FIELD IF NOT EXISTS metadata ON document TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS upload_timestamp ON document TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS document_status ON document FIELDS status;
    DEFINE INDEX IF NOT EXISTS document_uploaded ON document FIELDS upload_timestamp;

    -- ==========================================================================
    -- CHUNK TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS document ON chunk TYPE record<document>;
    DEFINE FIELD IF NOT EXISTS chunk_index ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS content ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chunk_document ON chunk FIELDS document;
    DEFINE ANALYZER IF NOT EXISTS chunk_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS chunk_content_ft ON chunk FIELDS content FULLTEXT ANALYZER chunk_analyzer BM25;

    -- ==========================================================================
    -- JOB TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job_type ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON job TYPE string DEFAULT 'pending';
    DEFINE FIELD IF NOT EXISTS config ON job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS result ON job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error_message ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS retry_count ON job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS max_retries ON job TYPE int DEFAULT 3;
    DEFINE FIELD IF NOT EXISTS created_at ON job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS started_at ON job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS completed_at ON job TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS job_status ON job FIELDS status;
    DEFINE INDEX IF NOT EXISTS job_type_idx ON job FIELDS job_type;
    DEFINE INDEX IF NOT EXISTS job_created ON job FIELDS created_at;

    -- ==========================================================================
    -- JOB CHECKPOINT TABLE
    -- ==========================================================================
    -- Append-only: each progress step writes a new row, resume reads the latest
    DEFINE TABLE IF NOT EXISTS job_checkpoint SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job ON job_checkpoint TYPE record<job>;
    DEFINE FIELD IF NOT EXISTS step_name ON job_checkpoint TYPE string;
    DEFINE FIELD IF NOT EXISTS state_data ON job_checkpoint TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS timestamp ON job_checkpoint TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS checkpoint_job_time ON job_checkpoint FIELDS job, timestamp;

    -- ==========================================================================
    -- JOB EVENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS job_event SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job ON job_event TYPE record<job>;
    DEFINE FIELD IF NOT EXISTS event_type ON job_event TYPE string;
    DEFINE FIELD IF NOT EXISTS event_data ON job_event TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS timestamp ON job_event TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS event_job_time ON job_event FIELDS job, timestamp;
`
