// Package capture stores framebuffer captures.
//
// A Store receives PNG bytes under a generated name and returns where it
// put them. DirStore writes files into a local directory; S3Store uploads
// objects to S3 or an S3-compatible service:
//
//	store, err := capture.NewDirStore("/var/lib/xripc/captures")
//	loc, err := store.Save(ctx, capture.NewName(time.Now()), png)
package capture
