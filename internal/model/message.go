package model

import "time"

// IngestionGroup is the FIFO message group that serializes document
// ingestion.
const IngestionGroup = "ingestion"

// DocumentPayload is the document queue message body.
type DocumentPayload struct {
	S3Bucket string `json:"S3_BUCKET"`
	S3Key    string `json:"S3_KEY"`
}

// QueueMessage is a claimed queue message. ReceiptHandle identifies the
// in-flight claim; the message becomes visible again when the visibility
// deadline passes without a delete.
type QueueMessage struct {
	ID            string    `json:"id"`
	Body          string    `json:"body"`
	GroupKey      string    `json:"group_key,omitempty"`
	ReceiptHandle string    `json:"receipt_handle"`
	ReceiveCount  int       `json:"receive_count"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// BlobNotification is the blob-created event shape accepted on the news
// queue.
type BlobNotification struct {
	Records []BlobRecord `json:"Records"`
}

// BlobRecord is one object-created entry inside a notification.
type BlobRecord struct {
	S3 struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// NewBlobNotification builds the event body announcing one created object.
func NewBlobNotification(bucket, key string) BlobNotification {
	var rec BlobRecord
	rec.S3.Bucket.Name = bucket
	rec.S3.Object.Key = key
	return BlobNotification{Records: []BlobRecord{rec}}
}
