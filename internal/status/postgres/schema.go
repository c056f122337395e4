package postgres

const (
	hostStatusTable        = "host_status"
	applicationStatusTable = "application_status"

	hostStatusCheck = "host_status_status_check"
)

// Schema creates the tables of the registry. No remarks is never stored,
// a missing row means exactly that.
const Schema = `
create table if not exists host_status (
	application text not null,
	hostname    text not null,
	status      text not null,
	updated_at  timestamptz not null default now(),
	constraint host_status_pkey primary key (application, hostname),
	constraint host_status_status_check
		check (status in ('ALLOWED_TO_BE_DOWN', 'EXPECTED_DOWN', 'PERMANENTLY_DOWN'))
);

create table if not exists application_status (
	application text not null,
	status      text not null,
	updated_at  timestamptz not null default now(),
	constraint application_status_pkey primary key (application),
	constraint application_status_status_check
		check (status in ('ALLOWED_TO_BE_DOWN'))
);
`
