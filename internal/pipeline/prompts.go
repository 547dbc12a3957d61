package pipeline

// extractionPrompt asks the model for one JSON array per page image.
// Amount fields stay strings so the normalizer sees the statement's own text.
const extractionPrompt = `Extract all transactions from this bank statement in JSON format. Each transaction should have the following fields:

- transaction_date: The date the transaction occurred (DD-MM-YYYY).
- value_date: The value date (DD-MM-YYYY).
- description: The transaction description text.
- withdrawals: The withdrawal amount as a string (if empty, use "0.00").
- deposits: The deposit amount as a string (if empty, use "0.00").
- balance: The balance amount as a string.

Return the response as a JSON array of objects matching this schema:

[
  {
    "transaction_date": "",
    "value_date": "",
    "description": "",
    "withdrawals": "",
    "deposits": "",
    "balance": ""
  }
]

Only include transactions; do not include any metadata or extra text. Preserve numeric values as shown in the document.
`
