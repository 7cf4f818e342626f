package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCredentialGuide explains how to obtain object storage keys
func ShowCredentialGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "OBJECT STORAGE CREDENTIALS")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Remote placements upload assets to an S3-compatible bucket.")
	fmt.Fprintln(w, "pinscraper needs an access key pair allowed to list, read, write")
	fmt.Fprintln(w, "and delete objects under the configured remote prefix.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "AWS S3:")
	fmt.Fprintln(w, "   1. Open IAM > Users > your user > Security credentials")
	fmt.Fprintln(w, "   2. Create access key, choose 'Command Line Interface'")
	fmt.Fprintln(w, "   3. Copy the Access key ID and the Secret access key")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "MinIO or other S3-compatible services:")
	fmt.Fprintln(w, "   Create a service account in the console and set the endpoint")
	fmt.Fprintln(w, "   with --s3-endpoint or storage.endpoint in the config file.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Keys are kept in the system keychain when available, otherwise")
	fmt.Fprintln(w, "in an encrypted file under the pinscraper config directory.")
	fmt.Fprintln(w, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are also honoured.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
