package postgres

const insertQuotationSQL = `
INSERT INTO cotizaciones (
  id, client_id, client_name, client_email, description,
  technician_id, status, progress_percent, approval_status,
  updates, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`

const getQuotationSQL = `
SELECT id, client_id, client_name, client_email, description,
       technician_id, status, progress_percent, approval_status,
       updates, created_at, updated_at
FROM cotizaciones WHERE id = $1
`

const getQuotationForUpdateSQL = getQuotationSQL + ` FOR UPDATE`

const updateQuotationSQL = `
UPDATE cotizaciones SET
  client_name=$2, client_email=$3, description=$4,
  technician_id=$5, status=$6, progress_percent=$7, approval_status=$8,
  updates=$9, updated_at=$10
WHERE id=$1
`

const deleteQuotationSQL = `
DELETE FROM cotizaciones WHERE id = $1
`
