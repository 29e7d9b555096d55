package types

import "fmt"

// ObjectInfo identifies an S3 object by bucket and key.
type ObjectInfo struct {
	Bucket string
	Key    string
}

// URL returns the s3:// form of the object, for log output.
func (o ObjectInfo) URL() string {
	return fmt.Sprintf("s3://%s/%s", o.Bucket, o.Key)
}
