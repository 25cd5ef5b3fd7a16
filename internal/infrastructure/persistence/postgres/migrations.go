package postgres

// Migrations returns the embedded schema migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_assessment_records", UpSQL: migration001},
		{Version: 2, Name: "create_report_runs", UpSQL: migration002},
	}
}

const migration001 = `
CREATE TABLE IF NOT EXISTS institutions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS classes (
    institution_id TEXT NOT NULL REFERENCES institutions(id) ON DELETE CASCADE,
    id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    average_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    passing_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    attendance_rate DOUBLE PRECISION,
    student_count INTEGER NOT NULL DEFAULT 0,
    performance_trend TEXT,
    PRIMARY KEY (institution_id, id),
    CONSTRAINT valid_class_trend CHECK (performance_trend IN ('improving', 'declining', 'stable'))
);

CREATE TABLE IF NOT EXISTS class_skills (
    institution_id TEXT NOT NULL,
    class_id TEXT NOT NULL,
    skill TEXT NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (institution_id, class_id, skill),
    FOREIGN KEY (institution_id, class_id) REFERENCES classes(institution_id, id) ON DELETE CASCADE
);

-- class_id is NULL for institution-wide exams.
CREATE TABLE IF NOT EXISTS exams (
    institution_id TEXT NOT NULL REFERENCES institutions(id) ON DELETE CASCADE,
    id TEXT NOT NULL,
    class_id TEXT,
    title TEXT NOT NULL DEFAULT '',
    average_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    held_at TIMESTAMP WITH TIME ZONE,
    PRIMARY KEY (institution_id, id)
);
CREATE INDEX IF NOT EXISTS idx_exams_class ON exams(institution_id, class_id, held_at);

CREATE TABLE IF NOT EXISTS exam_results (
    institution_id TEXT NOT NULL,
    exam_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (institution_id, exam_id, student_id),
    FOREIGN KEY (institution_id, exam_id) REFERENCES exams(institution_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS students (
    institution_id TEXT NOT NULL REFERENCES institutions(id) ON DELETE CASCADE,
    id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    class_id TEXT NOT NULL,
    overall_average DOUBLE PRECISION NOT NULL DEFAULT 0,
    progress_trend TEXT,
    attendance_rate DOUBLE PRECISION,
    risk_level TEXT,
    PRIMARY KEY (institution_id, id),
    CONSTRAINT valid_student_trend CHECK (progress_trend IN ('improving', 'declining', 'stable')),
    CONSTRAINT valid_risk_level CHECK (risk_level IN ('low', 'medium', 'high', 'critical'))
);
CREATE INDEX IF NOT EXISTS idx_students_class ON students(institution_id, class_id);

CREATE TABLE IF NOT EXISTS student_skills (
    institution_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    skill TEXT NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (institution_id, student_id, skill),
    FOREIGN KEY (institution_id, student_id) REFERENCES students(institution_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS student_risk_factors (
    institution_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    factor TEXT NOT NULL,
    PRIMARY KEY (institution_id, student_id, position),
    FOREIGN KEY (institution_id, student_id) REFERENCES students(institution_id, id) ON DELETE CASCADE
);
`

const migration002 = `
CREATE TABLE IF NOT EXISTS report_runs (
    run_id TEXT NOT NULL,
    institution_id TEXT NOT NULL REFERENCES institutions(id) ON DELETE CASCADE,
    fingerprint CHAR(64) NOT NULL,
    cached BOOLEAN NOT NULL DEFAULT FALSE,
    alerts INTEGER NOT NULL DEFAULT 0,
    critical_alerts INTEGER NOT NULL DEFAULT 0,
    predictions INTEGER NOT NULL DEFAULT 0,
    generated_at TIMESTAMP WITH TIME ZONE NOT NULL,
    PRIMARY KEY (run_id, institution_id)
);
CREATE INDEX IF NOT EXISTS idx_report_runs_institution ON report_runs(institution_id, generated_at DESC);
`
