package upload

import "context"

type objectKey struct{}

// WithObject returns a copy of ctx carrying the uploaded object.
func WithObject(ctx context.Context, obj Object) context.Context {
	return context.WithValue(ctx, objectKey{}, obj)
}

func ObjectFrom(ctx context.Context) (Object, bool) {
	obj, ok := ctx.Value(objectKey{}).(Object)
	return obj, ok
}

// FileURLFrom returns the retrieval URL set by the relay, or "".
func FileURLFrom(ctx context.Context) string {
	obj, _ := ObjectFrom(ctx)
	return obj.URL
}
